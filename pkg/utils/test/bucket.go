// Package testutils holds fixtures shared by package tests.
package testutils

import (
	"time"

	"github.com/shamba-ai/shamba/pkg/llm"
	"github.com/shamba-ai/shamba/pkg/merkle"
)

// NewTestBucket creates a simple text bucket for testing
func NewTestBucket(role, text string) merkle.Bucket {
	return merkle.Bucket{
		Type:     merkle.BucketTypeMessage,
		Role:     role,
		Content:  []llm.ContentBlock{{Type: llm.ContentTypeText, Text: text}},
		Model:    "test-model",
		Provider: "test-provider",
	}
}

// At returns node metadata stamped sec seconds after the Unix epoch.
func At(sec int64) merkle.NodeMeta {
	return merkle.NodeMeta{CreatedAt: time.Unix(sec, 0)}
}
