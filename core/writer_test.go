package core

import (
	"net/http"
	"testing"
)

func putWriter(t *testing.T, c *Cache, contentLength int64) *EntryWriter {
	t.Helper()
	req, err := http.NewRequest("GET", "http://example.com/w", nil)
	if err != nil {
		t.Fatal(err)
	}
	res := &http.Response{
		StatusCode:    200,
		Status:        "200 OK",
		Proto:         "HTTP/1.1",
		Header:        http.Header{"Cache-Control": []string{"max-age=60"}},
		ContentLength: contentLength,
		Request:       req,
	}
	writer := c.Put(req, res)
	if writer == nil {
		t.Fatal("response not admitted")
	}
	return writer
}

func TestWriterCommit(t *testing.T) {
	c := CreateCache(Config{})
	writer := putWriter(t, c, 5)
	writer.Write([]byte("he"))
	writer.Write([]byte("llo"))
	if err := writer.Commit(); err != nil {
		t.Fatal(err)
	}

	if counters := c.Counters(); counters.SuccessCount != 1 || counters.AbortCount != 0 {
		t.Fatalf("counters are %+v", counters)
	}
	if len(storedKeys(c)) != 1 {
		t.Fatal("entry not stored")
	}
}

func TestWriterAbortDiscards(t *testing.T) {
	c := CreateCache(Config{})
	writer := putWriter(t, c, 5)
	writer.Write([]byte("hel"))
	writer.Abort()

	if counters := c.Counters(); counters.AbortCount != 1 || counters.SuccessCount != 0 {
		t.Fatalf("counters are %+v", counters)
	}
	if len(storedKeys(c)) != 0 {
		t.Fatal("aborted entry must not be stored")
	}
	if _, err := writer.Write([]byte("lo")); err != ErrWriterDone {
		t.Fatalf("write after abort returned %v", err)
	}
}

func TestWriterTransitionsOnce(t *testing.T) {
	c := CreateCache(Config{})
	writer := putWriter(t, c, 2)
	writer.Write([]byte("ok"))
	if err := writer.Commit(); err != nil {
		t.Fatal(err)
	}
	// a later abort (e.g. a redundant Close) must not undo the commit
	writer.Abort()

	counters := c.Counters()
	if counters.SuccessCount != 1 || counters.AbortCount != 0 {
		t.Fatalf("counters are %+v", counters)
	}
	if len(storedKeys(c)) != 1 {
		t.Fatal("committed entry lost")
	}
}

func TestWriterLengthMismatchAborts(t *testing.T) {
	c := CreateCache(Config{})
	writer := putWriter(t, c, 10)
	writer.Write([]byte("short"))
	if err := writer.Commit(); err == nil {
		t.Fatal("commit must fail on a declared-length mismatch")
	}

	if counters := c.Counters(); counters.AbortCount != 1 || counters.SuccessCount != 0 {
		t.Fatalf("counters are %+v", counters)
	}
	if len(storedKeys(c)) != 0 {
		t.Fatal("truncated entry must not be stored")
	}
}

func TestWriterCloseAborts(t *testing.T) {
	c := CreateCache(Config{})
	writer := putWriter(t, c, 5)
	writer.Write([]byte("hel"))
	writer.Close()

	if counters := c.Counters(); counters.AbortCount != 1 {
		t.Fatalf("counters are %+v", counters)
	}
}
