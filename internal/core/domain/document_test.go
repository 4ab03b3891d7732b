package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentStatus_CanTransition(t *testing.T) {
	tests := []struct {
		name string
		from DocumentStatus
		to   DocumentStatus
		want bool
	}{
		{"uploaded to processing", StatusUploaded, StatusProcessing, true},
		{"uploaded to error", StatusUploaded, StatusError, true},
		{"uploaded to vectorized skips processing", StatusUploaded, StatusVectorized, false},
		{"processing to ready", StatusProcessing, StatusReady, true},
		{"processing to vectorized", StatusProcessing, StatusVectorized, true},
		{"processing to error", StatusProcessing, StatusError, true},
		{"processing back to uploaded", StatusProcessing, StatusUploaded, false},
		{"ready to processing for reprocess", StatusReady, StatusProcessing, true},
		{"vectorized to processing for reprocess", StatusVectorized, StatusProcessing, true},
		{"vectorized to ready", StatusVectorized, StatusReady, false},
		{"error to processing for retry", StatusError, StatusProcessing, true},
		{"error to vectorized", StatusError, StatusVectorized, false},
		{"unknown status", DocumentStatus("BOGUS"), StatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestDocumentStatus_Valid(t *testing.T) {
	for _, s := range []DocumentStatus{
		StatusUploaded, StatusProcessing, StatusReady, StatusVectorized, StatusError,
	} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, DocumentStatus("").Valid())
	assert.False(t, DocumentStatus("DONE").Valid())
}

func TestTenantScope_IsZero(t *testing.T) {
	assert.True(t, TenantScope{}.IsZero())
	assert.True(t, TenantScope{TeacherID: "t1"}.IsZero())
	assert.True(t, TenantScope{SchoolID: "s1"}.IsZero())
	assert.False(t, TenantScope{TeacherID: "t1", SchoolID: "s1"}.IsZero())
}

func TestDocument_Scope(t *testing.T) {
	doc := Document{TeacherID: "t1", SchoolID: "s1"}
	assert.Equal(t, TenantScope{TeacherID: "t1", SchoolID: "s1"}, doc.Scope())
}
