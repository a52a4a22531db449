package report

import (
	"covnorm/internal/fileutil"
)

// RewriteFile applies rw to the report at path in place and returns the
// number of rewritten references. A report without references is left
// untouched on disk.
func RewriteFile(rw Rewriter, path, prefix string) (int, error) {
	var count int
	err := fileutil.Update(path, func(data []byte) ([]byte, bool, error) {
		out, n, err := rw.Rewrite(data, prefix)
		if err != nil {
			return nil, false, err
		}
		count = n
		return out, n > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
