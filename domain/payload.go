package domain

import "github.com/bytedance/sonic"

// RawTaskPayload is the loosely-typed body the issue-generation service
// returns. Tasks stays raw because the upstream model has been observed to
// emit either a JSON array or an index-keyed object per group; the
// normalizer owns that coercion.
type RawTaskPayload struct {
	Title    string                 `json:"title,omitempty"`
	Severity string                 `json:"severity"`
	Tasks    sonic.NoCopyRawMessage `json:"tasks,omitempty"`
}
