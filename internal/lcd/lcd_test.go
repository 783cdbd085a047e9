package lcd

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLink answers reads from in and records writes.
type fakeLink struct {
	in       bytes.Buffer
	writes   [][]byte
	writeErr error
}

func (f *fakeLink) Read(p []byte) (int, error) {
	if f.in.Len() == 0 {
		return 0, nil // serial read timeout
	}
	return f.in.Read(p)
}

func (f *fakeLink) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.writes = append(f.writes, append([]byte(nil), p...))
	return len(p), nil
}

func newPanel(t *testing.T) (*Panel, *fakeLink, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	link := &fakeLink{}
	return New(link, log), link, hook
}

func TestSetState(t *testing.T) {
	p, link, _ := newPanel(t)
	require.NoError(t, p.SetState(true))
	require.NoError(t, p.SetState(false))
	assert.Equal(t, [][]byte{[]byte("M^\x01\n"), []byte("M^\x00\n")}, link.writes)
}

func TestWriteFrames(t *testing.T) {
	p, link, _ := newPanel(t)
	link.in.Write([]byte("S\x01\x00}"))

	ok, err := p.Write("Hello", "a row that is far too long")
	require.NoError(t, err)
	assert.True(t, ok)

	want := [][]byte{
		[]byte("M\x00"),
		[]byte("M^\x01"),
		[]byte("M\f\x00\x10Hello           "),
		[]byte("M^\x01"),
		[]byte("M\f\x01\x10a row that is fa"),
	}
	assert.Equal(t, want, link.writes)
}

func TestWriteWithoutAckStillSendsRows(t *testing.T) {
	p, link, hook := newPanel(t)
	link.in.Write([]byte("S\x01"))

	ok, err := p.Write("one", "two")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, link.writes, 5)

	var warned bool
	for _, e := range hook.AllEntries() {
		warned = warned || e.Message == "unexpected LCD init response"
	}
	assert.True(t, warned)
}

func TestWriteError(t *testing.T) {
	p, link, _ := newPanel(t)
	link.writeErr = errors.New("tty gone")
	_, err := p.Write("a", "b")
	assert.ErrorIs(t, err, link.writeErr)
	assert.ErrorIs(t, p.SetState(true), link.writeErr)
}

func TestRowFrame(t *testing.T) {
	f := rowFrame(1, "")
	assert.Len(t, f, 4+Width)
	assert.Equal(t, byte(1), f[2])
}
