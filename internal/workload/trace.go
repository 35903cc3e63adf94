package workload

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/garethgeorge/goftl/internal/ftl"
	"github.com/klauspost/compress/zstd"
)

const (
	traceMagic   = 0x46544c54 // "FTLT"
	traceVersion = 1

	traceBufferSize = 64 * 1024
)

var ErrBadTrace = errors.New("not a workload trace")

// TraceHeader describes the engine a trace was recorded against.
type TraceHeader struct {
	Version     uint16
	LogicalSize int64
}

// TraceWriter records a stream of LBAs as zstd compressed uvarints.
type TraceWriter struct {
	bw    *bufio.Writer
	zw    *zstd.Encoder
	buf   [binary.MaxVarintLen64]byte
	count int64
}

// NewTraceWriter starts a trace on w. Close flushes the trace but does not
// close w.
func NewTraceWriter(w io.Writer, logicalSize int64) (*TraceWriter, error) {
	zw, err := zstd.NewWriter(w,
		zstd.WithEncoderCRC(true),
		zstd.WithEncoderConcurrency(2),
		zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("create zstd writer: %w", err)
	}
	tw := &TraceWriter{
		bw: bufio.NewWriterSize(zw, traceBufferSize),
		zw: zw,
	}

	var header [14]byte
	binary.LittleEndian.PutUint32(header[0:4], traceMagic)
	binary.LittleEndian.PutUint16(header[4:6], traceVersion)
	binary.LittleEndian.PutUint64(header[6:14], uint64(logicalSize))
	if _, err := tw.bw.Write(header[:]); err != nil {
		zw.Close()
		return nil, fmt.Errorf("write trace header: %w", err)
	}
	return tw, nil
}

func (tw *TraceWriter) Append(lba ftl.LBA) error {
	if lba < 0 {
		return fmt.Errorf("negative lba %d in trace", lba)
	}
	n := binary.PutUvarint(tw.buf[:], uint64(lba))
	if _, err := tw.bw.Write(tw.buf[:n]); err != nil {
		return err
	}
	tw.count++
	return nil
}

// Count is the number of LBAs appended so far.
func (tw *TraceWriter) Count() int64 {
	return tw.count
}

func (tw *TraceWriter) Close() error {
	if err := tw.bw.Flush(); err != nil {
		tw.zw.Close()
		return fmt.Errorf("flush trace: %w", err)
	}
	if err := tw.zw.Close(); err != nil {
		return fmt.Errorf("close zstd writer: %w", err)
	}
	return nil
}

// TraceReader replays a trace written by TraceWriter.
type TraceReader struct {
	Header TraceHeader

	br *bufio.Reader
	zr *zstd.Decoder
}

func NewTraceReader(r io.Reader) (*TraceReader, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	tr := &TraceReader{
		br: bufio.NewReaderSize(zr, traceBufferSize),
		zr: zr,
	}

	var header [14]byte
	if _, err := io.ReadFull(tr.br, header[:]); err != nil {
		zr.Close()
		return nil, fmt.Errorf("%w: read header: %v", ErrBadTrace, err)
	}
	if binary.LittleEndian.Uint32(header[0:4]) != traceMagic {
		zr.Close()
		return nil, ErrBadTrace
	}
	tr.Header = TraceHeader{
		Version:     binary.LittleEndian.Uint16(header[4:6]),
		LogicalSize: int64(binary.LittleEndian.Uint64(header[6:14])),
	}
	if tr.Header.Version != traceVersion {
		zr.Close()
		return nil, fmt.Errorf("trace version %d does not match current version %d", tr.Header.Version, traceVersion)
	}
	return tr, nil
}

// Iter yields every LBA in the trace, stopping at the first error.
func (tr *TraceReader) Iter() iter.Seq2[ftl.LBA, error] {
	return func(yield func(ftl.LBA, error) bool) {
		for {
			v, err := binary.ReadUvarint(tr.br)
			if err != nil {
				if err == io.EOF {
					return // end of trace
				}
				yield(0, fmt.Errorf("read trace record: %w", err))
				return
			}
			if !yield(ftl.LBA(v), nil) {
				return
			}
		}
	}
}

func (tr *TraceReader) Close() {
	tr.zr.Close()
}

// Replay is a Generator over a fully loaded trace, cycling when exhausted.
type Replay struct {
	lbas []ftl.LBA
	next int
}

// LoadReplay reads the whole trace into memory.
func LoadReplay(tr *TraceReader) (*Replay, error) {
	var lbas []ftl.LBA
	for lba, err := range tr.Iter() {
		if err != nil {
			return nil, err
		}
		lbas = append(lbas, lba)
	}
	if len(lbas) == 0 {
		return nil, fmt.Errorf("empty trace")
	}
	return &Replay{lbas: lbas}, nil
}

func (r *Replay) Len() int {
	return len(r.lbas)
}

func (r *Replay) Next() ftl.LBA {
	lba := r.lbas[r.next]
	r.next = (r.next + 1) % len(r.lbas)
	return lba
}
