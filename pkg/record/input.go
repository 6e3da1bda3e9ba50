package record

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

const (
	RepositoryColumn = "repo_id"
	ResourceColumn   = "resource_id"

	bom = "\uFEFF"
)

// ReadCSVFile reads references from a CSV file with a header row.
func ReadCSVFile(path string) ([]Reference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open input csv")
	}
	defer f.Close()

	refs, err := ReadCSV(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read input csv %s", path)
	}
	return refs, nil
}

// ReadCSV keeps input order. Rows whose cells are all blank are skipped;
// extra columns are ignored.
func ReadCSV(r io.Reader) ([]Reference, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("input has no header row")
	}
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}

	header = lo.Map(header, func(item string, index int) string {
		return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(item, bom)))
	})

	repoIdx := lo.IndexOf(header, RepositoryColumn)
	resIdx := lo.IndexOf(header, ResourceColumn)
	if repoIdx < 0 || resIdx < 0 {
		return nil, errors.Errorf("header must contain %q and %q columns, got %v", RepositoryColumn, ResourceColumn, header)
	}

	refs := make([]Reference, 0)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read row")
		}

		line, _ := cr.FieldPos(0)
		if lo.EveryBy(row, func(item string) bool { return strings.TrimSpace(item) == "" }) {
			continue
		}

		ref := Reference{
			RepositoryID: cell(row, repoIdx),
			ResourceID:   cell(row, resIdx),
		}
		if ref.RepositoryID == "" || ref.ResourceID == "" {
			return nil, errors.Errorf("line %d: empty %s or %s", line, RepositoryColumn, ResourceColumn)
		}

		refs = append(refs, ref)
	}

	return refs, nil
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
