package genomedb

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// fastaLineWidth is the number of sequence characters written per line.
const fastaLineWidth = 80

// maxFASTALine bounds a single line of an input FASTA file.
const maxFASTALine = 64 << 20

// Record is one sequence of a FASTA file.
type Record struct {
	ID  string
	Seq string
}

// ReadFASTA calls fn for every record of r, in file order.
// The record ID is the header line without its leading '>'.
func ReadFASTA(r io.Reader, fn func(Record) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxFASTALine)

	var (
		cur     *Record
		seq     strings.Builder
		lineNum int
	)
	flush := func() error {
		if cur == nil {
			return nil
		}
		cur.Seq = seq.String()
		seq.Reset()
		return fn(*cur)
	}

	for sc.Scan() {
		lineNum++
		line := strings.TrimRight(sc.Text(), "\r")
		switch {
		case strings.HasPrefix(line, ">"):
			if err := flush(); err != nil {
				return err
			}
			cur = &Record{ID: strings.TrimSpace(line[1:])}
		case strings.HasPrefix(line, ";"), strings.TrimSpace(line) == "":
			// Comments and blank lines.
		case cur == nil:
			return fmt.Errorf("line %d: sequence data before the first header", lineNum)
		default:
			seq.WriteString(strings.TrimSpace(line))
		}
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return fmt.Errorf("line %d: line longer than %d bytes", lineNum+1, maxFASTALine)
		}
		return err
	}
	return flush()
}

// WriteFASTA writes records to w, wrapping sequences at 80 columns.
func WriteFASTA(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	for _, r := range records {
		if _, err := fmt.Fprintf(bw, ">%s\n", r.ID); err != nil {
			return err
		}
		for s := r.Seq; len(s) > 0; {
			n := min(len(s), fastaLineWidth)
			if _, err := bw.WriteString(s[:n] + "\n"); err != nil {
				return err
			}
			s = s[n:]
		}
	}
	return bw.Flush()
}
