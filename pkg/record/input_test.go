package record

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []Reference
		wantErr string
	}{
		{
			name:  "keeps input order",
			input: "repo_id,resource_id\n2,abc123\n2,def456\n5,xyz\n",
			want: []Reference{
				{RepositoryID: "2", ResourceID: "abc123"},
				{RepositoryID: "2", ResourceID: "def456"},
				{RepositoryID: "5", ResourceID: "xyz"},
			},
		},
		{
			name:  "trims ids and ignores extra columns",
			input: "title,resource_id,repo_id\nPapers, 1234 ,3\n",
			want:  []Reference{{RepositoryID: "3", ResourceID: "1234"}},
		},
		{
			name:  "header with bom and mixed case",
			input: "\uFEFFRepo_ID,Resource_ID\n2,abc\n",
			want:  []Reference{{RepositoryID: "2", ResourceID: "abc"}},
		},
		{
			name:  "skips blank rows",
			input: "repo_id,resource_id\n2,abc\n,\n\n2,def\n",
			want: []Reference{
				{RepositoryID: "2", ResourceID: "abc"},
				{RepositoryID: "2", ResourceID: "def"},
			},
		},
		{
			name:  "header only",
			input: "repo_id,resource_id\n",
			want:  []Reference{},
		},
		{
			name:    "missing column",
			input:   "repo_id,id\n2,abc\n",
			wantErr: "header must contain",
		},
		{
			name:    "empty resource id",
			input:   "repo_id,resource_id\n2,abc\n2,\n",
			wantErr: "line 3",
		},
		{
			name:    "short row",
			input:   "repo_id,resource_id\n2\n",
			wantErr: "line 2",
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: "no header row",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadCSV(strings.NewReader(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte("repo_id,resource_id\n2,abc123\n"), 0o644))

	refs, err := ReadCSVFile(path)
	require.NoError(t, err)
	assert.Equal(t, []Reference{{RepositoryID: "2", ResourceID: "abc123"}}, refs)

	_, err = ReadCSVFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
