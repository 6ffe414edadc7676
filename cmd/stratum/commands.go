package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/23skdu/stratum/internal/colfile"
	"github.com/23skdu/stratum/internal/columnar"
	"github.com/23skdu/stratum/internal/record"
	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func addCommands(root *cobra.Command, a *app) {
	cmd := &cobra.Command{
		Use:   "ls file",
		Short: "Print the schema and block table of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.list(cmd.OutOrStdout(), args[0])
		},
	}
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "cat file",
		Short: "Decode and print one block or every block of a file",
		Args:  cobra.ExactArgs(1),
	}
	block := cmd.Flags().Int("block", -1, "block index to print; all blocks when negative")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return a.cat(cmd.OutOrStdout(), args[0], *block)
	}
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "verify file...",
		Short: "Decode every block of each file and check all checksums",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.verify(cmd.OutOrStdout(), args)
		},
	}
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "gen file",
		Short: "Write a sample file holding a sliced large-list column",
		Args:  cobra.ExactArgs(1),
	}
	start := cmd.Flags().Int64("start", 2, "first offset of the list window")
	end := cmd.Flags().Int64("end", 4, "last offset of the list window")
	blocks := cmd.Flags().Int("blocks", 1, "number of blocks to write")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return a.gen(cmd.OutOrStdout(), args[0], *start, *end, *blocks)
	}
	root.AddCommand(cmd)
}

func (a *app) list(w io.Writer, path string) error {
	rd, err := colfile.Open(path, a.options()...)
	if err != nil {
		return err
	}
	defer rd.Close()

	fmt.Fprint(w, rd.Schema())
	fmt.Fprintf(w, "blocks: %d\n", rd.NumBlocks())
	for i, b := range rd.Blocks() {
		fmt.Fprintf(w, "  %d\toffset=%d\tlength=%d\trows=%d\n", i, b.Offset, b.Length, b.Rows)
	}
	return nil
}

func (a *app) cat(w io.Writer, path string, block int) error {
	rd, err := colfile.Open(path, a.options()...)
	if err != nil {
		return err
	}
	defer rd.Close()

	if block >= 0 {
		b, err := rd.ReadBlock(block)
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("block %d out of range: file has %d blocks", block, rd.NumBlocks())
		}
		if err != nil {
			return err
		}
		return printBatch(w, block, b)
	}

	for n := 0; ; n++ {
		b, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := printBatch(w, n, b); err != nil {
			return err
		}
	}
}

func printBatch(w io.Writer, n int, b *record.Batch) error {
	rec := b.Record()
	defer rec.Release()

	fmt.Fprintf(w, "block %d: %d rows\n", n, rec.NumRows())
	for i, col := range rec.Columns() {
		fmt.Fprintf(w, "  %s: %v\n", rec.ColumnName(i), col)
	}
	return nil
}

func (a *app) verify(w io.Writer, paths []string) error {
	reports := make([]colfile.VerifyReport, len(paths))
	errs := make([]error, len(paths))

	var g errgroup.Group
	g.SetLimit(a.cfg.VerifyConcurrency)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			reports[i], errs[i] = colfile.Verify(path, a.options()...)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i, path := range paths {
		if errs[i] != nil {
			failed++
			fmt.Fprintf(w, "%s: FAILED: %v\n", path, errs[i])
			continue
		}
		r := reports[i]
		fmt.Fprintf(w, "%s: ok blocks=%d rows=%d bytes=%d\n", path, r.Blocks, r.Rows, r.Bytes)
	}
	a.logger.Info().Int("files", len(paths)).Int("failed", failed).Msg("verify finished")
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed verification", failed, len(paths))
	}
	return nil
}

// sampleChild is the child array every generated list column windows into.
func sampleChild() *array.StringView {
	foo, bar, baz := "foo", "bar", "baz"
	return columnar.NewStringViewFromOptional(memory.DefaultAllocator, []*string{&foo, &bar, &baz, nil})
}

func (a *app) gen(w io.Writer, path string, start, end int64, blocks int) error {
	if blocks < 0 {
		return fmt.Errorf("blocks must not be negative, got %d", blocks)
	}
	field := arrow.Field{Name: "name", Type: arrow.BinaryTypes.StringView, Nullable: true}
	child := sampleChild()
	defer child.Release()
	list, err := columnar.NewLargeList(field, []int64{start, end}, child, nil)
	if err != nil {
		return err
	}
	defer list.Release()
	b, err := record.TryFromColumns(record.NamedColumn{Name: "large_list_array", Array: list})
	if err != nil {
		return err
	}
	defer b.Release()

	batches := make([]*record.Batch, blocks)
	for i := range batches {
		batches[i] = b
	}
	if err := colfile.WriteFile(path, b.Schema(), batches, a.options()...); err != nil {
		return err
	}
	a.logger.Info().Str("path", path).Int("blocks", blocks).Msg("wrote sample file")
	fmt.Fprintf(w, "wrote %s: %d blocks\n", path, blocks)
	return nil
}
