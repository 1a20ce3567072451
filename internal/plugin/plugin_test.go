// Copyright (C) 2021 Vojtech Aschenbrenner <v@asch.cz>

package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThreadModelString(t *testing.T) {
	tests := []struct {
		model ThreadModel
		want  string
	}{
		{SerializeAllRequests, "serialize_all_requests"},
		{SerializeRequests, "serialize_requests"},
		{Parallel, "parallel"},
		{ThreadModel(42), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.model.String())
	}
}
