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

// ExecutionResult is what every executor returns. When Success is false the
// enclosing tree stops and the result is handed back unchanged.
type ExecutionResult struct {
	Success   bool
	Data      interface{}
	Error     string
	Operation string
	Metadata  map[string]interface{}

	err error
}

// NewResult returns a successful result.
func NewResult(operation string, data interface{}, metadata map[string]interface{}) *ExecutionResult {
	if metadata == nil {
		metadata = make(map[string]interface{})
	}

	return &ExecutionResult{
		Success:   true,
		Data:      data,
		Operation: operation,
		Metadata:  metadata,
	}
}

// NewFailure returns a failed result for the given error.
func NewFailure(operation string, err error) *ExecutionResult {
	return &ExecutionResult{
		Operation: operation,
		Error:     err.Error(),
		Metadata: map[string]interface{}{
			"error_kind": ErrorKindName(err),
		},
		err: err,
	}
}

// Err returns the error of a failed result, or nil.
func (r *ExecutionResult) Err() error {
	if r == nil || r.Success {
		return nil
	}

	if r.err == nil {
		return ErrExecution.New(r.Operation, r.Error)
	}
	return r.err
}

// Items returns the data of the result as a list of records.
func (r *ExecutionResult) Items() []interface{} {
	if r == nil {
		return nil
	}
	return ExtractItems(r.Data)
}
