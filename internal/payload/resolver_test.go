package payload

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enginex/gate/log"
)

// fakeObjectGetter serves a canned collection body or a canned error.
type fakeObjectGetter struct {
	body string
	err  error
}

func (f *fakeObjectGetter) GetObject(_ context.Context, _ *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(strings.NewReader(f.body)),
	}, nil
}

func newTestResolver(getter ObjectGetter) *Resolver {
	logger := log.NewZerologAdapter(zerolog.Disabled, false)
	return NewResolver(getter, "bucket", "records.json", time.Second, logger)
}

func TestResolver_MatchingRecord(t *testing.T) {
	resolver := newTestResolver(&fakeObjectGetter{
		body: `[{"token":"ABC","base64":"aGVsbG8="},{"token":"DEF","base64":"d29ybGQ="}]`,
	})

	value, err := resolver.Resolve(context.Background(), "DEF")
	require.NoError(t, err)
	assert.Equal(t, "d29ybGQ=", value)
}

func TestResolver_NoMatchingRecord(t *testing.T) {
	resolver := newTestResolver(&fakeObjectGetter{
		body: `[{"token":"ABC","base64":"aGVsbG8="}]`,
	})

	_, err := resolver.Resolve(context.Background(), "MISSING")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolver_FetchFailure(t *testing.T) {
	resolver := newTestResolver(&fakeObjectGetter{
		err: errors.New("access denied"),
	})

	// Fetch failure and not-found collapse to the same error kind; callers
	// cannot distinguish them.
	_, err := resolver.Resolve(context.Background(), "ABC")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolver_ParseFailure(t *testing.T) {
	resolver := newTestResolver(&fakeObjectGetter{
		body: `{"not":"an array"`,
	})

	_, err := resolver.Resolve(context.Background(), "ABC")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolver_EmptyCollection(t *testing.T) {
	resolver := newTestResolver(&fakeObjectGetter{body: `[]`})

	_, err := resolver.Resolve(context.Background(), "ABC")
	assert.ErrorIs(t, err, ErrNotFound)
}
