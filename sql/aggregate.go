// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sql

// Aggregate keys returned by ComputeAggregates.
const (
	AggCount      = "count"
	AggSum        = "sum"
	AggAvg        = "avg"
	AggMin        = "min"
	AggMax        = "max"
	AggTotalItems = "total_items"
)

// ComputeAggregates walks items once and returns count, sum, avg, min, max
// and total_items for the given field. An empty field or "*" aggregates the
// items themselves.
//
// count is the number of non-null values. sum and avg only consider numeric
// values (numeric strings included); avg is nil when there are none. min
// and max use the natural order of the values and are nil for no values.
func ComputeAggregates(items []interface{}, field string) map[string]interface{} {
	var (
		count    int64
		numeric  int64
		sum      float64
		min, max interface{}
	)

	for _, item := range items {
		v := item
		if field != "" && field != "*" {
			var ok bool
			v, ok = FieldValue(item, field)
			if !ok {
				continue
			}
		}

		if v == nil {
			continue
		}
		count++

		if f, ok := ToFloat(v); ok {
			numeric++
			sum += f
		}

		if min == nil || Compare(v, min) < 0 {
			min = v
		}

		if max == nil || Compare(v, max) > 0 {
			max = v
		}
	}

	var avg interface{}
	if numeric > 0 {
		avg = sum / float64(numeric)
	}

	return map[string]interface{}{
		AggCount:      count,
		AggSum:        numberValue(sum),
		AggAvg:        avg,
		AggMin:        min,
		AggMax:        max,
		AggTotalItems: int64(len(items)),
	}
}

// numberValue returns integral floats as int64 so sums of integer columns
// stay integers.
func numberValue(f float64) interface{} {
	return Normalize(f)
}
