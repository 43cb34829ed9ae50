package protocol

import "testing"

type testWriter struct{ t *testing.T }

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Logf("%s", string(p))
	return len(p), nil
}
