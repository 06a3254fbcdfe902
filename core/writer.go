package core

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ErrWriterDone is returned when writing to an EntryWriter that has
// already committed or aborted.
var ErrWriterDone = errors.New("entry writer already committed or aborted")

// EntryWriter streams a response body into an entry while the caller
// reads it. On clean end-of-stream Commit places the finished entry in
// the store; Abort discards the buffer. Each writer transitions exactly
// once: commit and abort are mutually exclusive, and whichever happens
// first wins.
//
// The writer must observe the full byte stream the origin served, even
// when the caller skips or short-reads, so that the stored body equals
// the origin bytes rather than the bytes the caller consumed.
type EntryWriter struct {
	cache *Cache
	entry *Entry
	buf   bytes.Buffer
	// declaredLength is the Content-Length of the response,
	// -1 when the body is chunked or close-delimited.
	declaredLength int64
	done           bool
}

// Write buffers body bytes. The writer is owned by a single request;
// no locking is needed.
func (w *EntryWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, ErrWriterDone
	}
	return w.buf.Write(p)
}

// Commit finishes the entry and places it in the store. It must be
// called on clean end-of-stream; if the buffered length disagrees with
// the declared body length the writer aborts instead and reports the
// mismatch.
func (w *EntryWriter) Commit() error {
	if w.done {
		return nil
	}
	if w.declaredLength >= 0 && int64(w.buf.Len()) != w.declaredLength {
		w.Abort()
		return fmt.Errorf("body length %d does not match declared length %d", w.buf.Len(), w.declaredLength)
	}
	w.done = true
	w.entry.Body = w.buf.Bytes()
	if err := w.cache.commit(w.entry); err != nil {
		log.Error().Err(err).Str("uri", w.entry.URI).Msg("Could not write to cache")
		return err
	}
	return nil
}

// Abort discards the buffer. Called when the body stream ends
// prematurely or the caller closes it before end-of-stream.
func (w *EntryWriter) Abort() {
	if w.done {
		return
	}
	w.done = true
	w.buf.Reset()
	w.cache.aborts.Add(1)
	log.Trace().Str("uri", w.entry.URI).Msg("Cache write aborted")
}

// Close implements io.Closer. Closing an uncommitted writer aborts it.
func (w *EntryWriter) Close() error {
	w.Abort()
	return nil
}
