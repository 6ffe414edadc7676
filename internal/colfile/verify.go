package colfile

// VerifyReport summarizes a file that decoded cleanly.
type VerifyReport struct {
	Path   string
	Blocks int
	Rows   int64
	Bytes  int64
}

// Verify opens path and decodes every block, last block first, so that each
// decode goes through the footer index rather than a sequential scan.
func Verify(path string, opts ...Option) (VerifyReport, error) {
	rd, err := Open(path, opts...)
	if err != nil {
		return VerifyReport{}, err
	}
	defer rd.Close()

	report := VerifyReport{Path: path, Blocks: rd.NumBlocks(), Bytes: rd.Size()}
	for n := rd.NumBlocks() - 1; n >= 0; n-- {
		b, err := rd.ReadBlock(n)
		if err != nil {
			return VerifyReport{}, err
		}
		report.Rows += int64(b.NumRows())
	}
	return report, nil
}
