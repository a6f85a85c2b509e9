// Copyright © 2018-2020 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package resultio serializes classify.Result rows to CSV and JSON,
// the two output formats gambit query supports.
package resultio

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/jlumpe/gambit/classify"
	"github.com/jlumpe/gambit/refdb"
	"github.com/jlumpe/gambit/taxonomy"
)

// Row is one query's classification result, flattened for
// serialization.
type Row struct {
	Query string `json:"query"`

	PredictedName      string   `json:"predicted.name,omitempty"`
	PredictedRank      string   `json:"predicted.rank,omitempty"`
	PredictedNCBIID    *int64   `json:"predicted.ncbi_id,omitempty"`
	PredictedThreshold *float64 `json:"predicted.threshold,omitempty"`

	ClosestDistance    float64 `json:"closest.distance"`
	ClosestDescription string  `json:"closest.description"`

	NextName      string   `json:"next.name,omitempty"`
	NextRank      string   `json:"next.rank,omitempty"`
	NextNCBIID    *int64   `json:"next.ncbi_id,omitempty"`
	NextThreshold *float64 `json:"next.threshold,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
}

// csvColumns is the fixed column order for tabular query output.
var csvColumns = []string{
	"query",
	"predicted.name", "predicted.rank", "predicted.ncbi_id", "predicted.threshold",
	"closest.distance", "closest.description",
	"next.name", "next.rank", "next.ncbi_id", "next.threshold",
}

// FromResult builds a Row from a classifier result. dist is the
// distance from the query to db.Genome(res.Closest)'s signature.
func FromResult(query string, dist float32, res *classify.Result, db *refdb.DB) Row {
	row := Row{
		Query:              query,
		ClosestDistance:    float64(dist),
		ClosestDescription: db.Genome(res.Closest).Description,
		Warnings:           res.Warnings,
	}

	forest := db.Taxonomy()
	if res.Predicted != taxonomy.NoNode {
		t := forest.Node(res.Predicted)
		row.PredictedName = t.Name
		row.PredictedRank = t.Rank
		row.PredictedNCBIID = t.NCBIID
		row.PredictedThreshold = t.Threshold
	}
	if res.Next != taxonomy.NoNode {
		t := forest.Node(res.Next)
		row.NextName = t.Name
		row.NextRank = t.Rank
		row.NextNCBIID = t.NCBIID
		row.NextThreshold = t.Threshold
	}
	return row
}

// CSVWriter streams Rows to w as CSV, writing the header on the first
// call to Write.
type CSVWriter struct {
	w           *csv.Writer
	wroteHeader bool
}

// NewCSVWriter wraps w for streaming CSV output.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// Write appends one row, writing the header first if this is the
// first call.
func (cw *CSVWriter) Write(r Row) error {
	if !cw.wroteHeader {
		if err := cw.w.Write(csvColumns); err != nil {
			return err
		}
		cw.wroteHeader = true
	}
	return cw.w.Write(csvRecord(r))
}

// Flush flushes any buffered output and returns the first write error
// encountered, if any.
func (cw *CSVWriter) Flush() error {
	cw.w.Flush()
	return cw.w.Error()
}

func csvRecord(r Row) []string {
	return []string{
		r.Query,
		r.PredictedName, r.PredictedRank, ncbiIDString(r.PredictedNCBIID), thresholdString(r.PredictedThreshold),
		floatString(r.ClosestDistance), r.ClosestDescription,
		r.NextName, r.NextRank, ncbiIDString(r.NextNCBIID), thresholdString(r.NextThreshold),
	}
}

// JSONWriter streams Rows to w as a single JSON array, one object per
// row, without ever holding the whole result set in memory.
type JSONWriter struct {
	w     io.Writer
	enc   *json.Encoder
	first bool
	open  bool
}

// NewJSONWriter wraps w for streaming JSON array output.
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{w: w, enc: json.NewEncoder(w), first: true}
}

// Write appends one row to the JSON array, opening it on the first call.
func (jw *JSONWriter) Write(r Row) error {
	if !jw.open {
		if _, err := io.WriteString(jw.w, "["); err != nil {
			return err
		}
		jw.open = true
	}
	if !jw.first {
		if _, err := io.WriteString(jw.w, ","); err != nil {
			return err
		}
	}
	jw.first = false
	return jw.enc.Encode(r)
}

// Close terminates the JSON array. It must be called exactly once,
// after the last Write.
func (jw *JSONWriter) Close() error {
	if !jw.open {
		if _, err := io.WriteString(jw.w, "[]"); err != nil {
			return err
		}
		return nil
	}
	_, err := io.WriteString(jw.w, "]")
	return err
}

func ncbiIDString(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

func thresholdString(t *float64) string {
	if t == nil {
		return ""
	}
	return strconv.FormatFloat(*t, 'g', -1, 64)
}

func floatString(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
