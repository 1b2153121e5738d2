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

import "sort"

// Container action types. They only hold a sequence of statements and are
// never dispatched to an executor.
const (
	Root    = "ROOT"
	Program = "PROGRAM"
)

// Operation names of the action tree.
const (
	OpSelect    = "SELECT"
	OpInsert    = "INSERT"
	OpUpdate    = "UPDATE"
	OpDelete    = "DELETE"
	OpCreate    = "CREATE"
	OpDrop      = "DROP"
	OpAlter     = "ALTER"
	OpWhere     = "WHERE"
	OpFilter    = "FILTER"
	OpLike      = "LIKE"
	OpIn        = "IN"
	OpHas       = "HAS"
	OpBetween   = "BETWEEN"
	OpRange     = "RANGE"
	OpTerm      = "TERM"
	OpOptional  = "OPTIONAL"
	OpValues    = "VALUES"
	OpCount     = "COUNT"
	OpSum       = "SUM"
	OpAvg       = "AVG"
	OpMin       = "MIN"
	OpMax       = "MAX"
	OpDistinct  = "DISTINCT"
	OpGroup     = "GROUP"
	OpGroupBy   = "GROUP_BY"
	OpHaving    = "HAVING"
	OpSummarize = "SUMMARIZE"
	OpProject   = "PROJECT"
	OpExtend    = "EXTEND"
	OpOrder     = "ORDER"
	OpOrderBy   = "ORDER_BY"
	OpBy        = "BY"
	OpLimit     = "LIMIT"
	OpOffset    = "OFFSET"
	OpJoin      = "JOIN"
	OpUnion     = "UNION"
	OpWith      = "WITH"
	OpAggregate = "AGGREGATE"
	OpForeach   = "FOREACH"
	OpLet       = "LET"
	OpFor       = "FOR"
	OpWindow    = "WINDOW"
	OpSlicing   = "SLICING"
	OpIndexing  = "INDEXING"
	OpLoad      = "LOAD"
	OpStore     = "STORE"
	OpMerge     = "MERGE"
	OpMatch     = "MATCH"
	OpPath      = "PATH"
	OpReturn    = "RETURN"
	OpPipe      = "PIPE"
	OpOptions   = "OPTIONS"

	// Scan-like leaves produced by plans.
	OpSequentialScan = "SEQUENTIAL_SCAN"
	OpIndexScan      = "INDEX_SCAN"

	// Graph operations delegated to an external graph library.
	OpOut          = "OUT"
	OpInTraverse   = "IN_TRAVERSE"
	OpShortestPath = "SHORTEST_PATH"
	OpAllPaths     = "ALL_PATHS"
	OpNeighbors    = "NEIGHBORS"
)

// OperationCategory groups operations for documentation and explain output.
type OperationCategory string

// Operation categories.
const (
	CategoryCore        OperationCategory = "core"
	CategoryFiltering   OperationCategory = "filtering"
	CategoryAggregation OperationCategory = "aggregation"
	CategoryProjection  OperationCategory = "projection"
	CategoryOrdering    OperationCategory = "ordering"
	CategoryJoining     OperationCategory = "joining"
	CategoryControl     OperationCategory = "control_flow"
	CategoryData        OperationCategory = "data"
	CategoryGraph       OperationCategory = "graph"
	CategoryAdvanced    OperationCategory = "advanced"
)

var operations = map[string]OperationCategory{
	OpSelect:         CategoryCore,
	OpInsert:         CategoryCore,
	OpUpdate:         CategoryCore,
	OpDelete:         CategoryCore,
	OpCreate:         CategoryCore,
	OpDrop:           CategoryCore,
	OpAlter:          CategoryCore,
	OpWhere:          CategoryFiltering,
	OpFilter:         CategoryFiltering,
	OpLike:           CategoryFiltering,
	OpIn:             CategoryFiltering,
	OpHas:            CategoryFiltering,
	OpBetween:        CategoryFiltering,
	OpRange:          CategoryFiltering,
	OpTerm:           CategoryFiltering,
	OpOptional:       CategoryFiltering,
	OpValues:         CategoryData,
	OpCount:          CategoryAggregation,
	OpSum:            CategoryAggregation,
	OpAvg:            CategoryAggregation,
	OpMin:            CategoryAggregation,
	OpMax:            CategoryAggregation,
	OpDistinct:       CategoryAggregation,
	OpGroup:          CategoryAggregation,
	OpGroupBy:        CategoryAggregation,
	OpHaving:         CategoryAggregation,
	OpSummarize:      CategoryAggregation,
	OpAggregate:      CategoryAggregation,
	OpProject:        CategoryProjection,
	OpExtend:         CategoryProjection,
	OpOrder:          CategoryOrdering,
	OpOrderBy:        CategoryOrdering,
	OpBy:             CategoryOrdering,
	OpLimit:          CategoryOrdering,
	OpOffset:         CategoryOrdering,
	OpJoin:           CategoryJoining,
	OpUnion:          CategoryJoining,
	OpWith:           CategoryJoining,
	OpForeach:        CategoryControl,
	OpLet:            CategoryControl,
	OpFor:            CategoryControl,
	OpWindow:         CategoryAdvanced,
	OpSlicing:        CategoryAdvanced,
	OpIndexing:       CategoryAdvanced,
	OpLoad:           CategoryData,
	OpStore:          CategoryData,
	OpMerge:          CategoryData,
	OpMatch:          CategoryGraph,
	OpPath:           CategoryGraph,
	OpReturn:         CategoryGraph,
	OpPipe:           CategoryAdvanced,
	OpOptions:        CategoryAdvanced,
	OpSequentialScan: CategoryCore,
	OpIndexScan:      CategoryCore,
	OpOut:            CategoryGraph,
	OpInTraverse:     CategoryGraph,
	OpShortestPath:   CategoryGraph,
	OpAllPaths:       CategoryGraph,
	OpNeighbors:      CategoryGraph,
}

// IsKnownOperation reports whether name belongs to the operation set.
func IsKnownOperation(name string) bool {
	_, ok := operations[name]
	return ok
}

// CategoryOf returns the category of the operation, and false when the
// operation is unknown.
func CategoryOf(name string) (OperationCategory, bool) {
	c, ok := operations[name]
	return c, ok
}

// Operations returns the sorted list of known operation names.
func Operations() []string {
	names := make([]string, 0, len(operations))
	for n := range operations {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsContainer reports whether the type only holds a statement sequence.
func IsContainer(typ string) bool {
	return typ == Root || typ == Program
}

// IsScan reports whether the type is a scan-like leaf: the action that
// materializes the rows of a source collection.
func IsScan(typ string) bool {
	return typ == OpSelect || typ == OpSequentialScan || typ == OpIndexScan
}
