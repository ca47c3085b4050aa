package vocab

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/collective"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	buf, err := Encode([]string{"cat", "dog"})
	require.NoError(t, err)
	assert.Equal(t, []byte("cat\x00dog\x00"), buf)
	assert.Equal(t, len(buf), Size([]string{"cat", "dog"}))

	buf, err = Encode(nil)
	require.NoError(t, err)
	assert.Empty(t, buf)
}

func TestEncodeForbidden(t *testing.T) {
	_, err := Encode([]string{"ok", ""})
	assert.ErrorIs(t, err, ErrForbiddenByte)
	_, err = Encode([]string{"a\x00b"})
	assert.ErrorIs(t, err, ErrForbiddenByte)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []string
		wantErr bool
	}{
		{"two terms", "cat\x00dog\x00", []string{"cat", "dog"}, false},
		{"empty", "", []string{}, false},
		{"concatenated proposals", "a\x00b\x00a\x00", []string{"a", "b", "a"}, false},
		{"unterminated", "cat\x00dog", nil, true},
		{"empty term", "cat\x00\x00", nil, true},
		{"leading separator", "\x00cat\x00", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.in))
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrMalformedPayload)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPropose(t *testing.T) {
	local := index.LocalCounts{
		{Doc: document.Document{ID: 0}, Counts: index.Counts{"the": 1, "cat": 1}},
		{Doc: document.Document{ID: 1}, Counts: index.Counts{"the": 2, "dog": 1}},
		{Doc: document.Document{ID: 2}, Counts: index.Counts{}},
	}
	assert.Equal(t, []string{"cat", "dog", "the"}, Propose(local).Terms)
	assert.Empty(t, Propose(nil).Terms)
}

func TestMerge(t *testing.T) {
	agreed, err := Merge([]byte("sat\x00the\x00cat\x00sat\x00dog\x00the\x00"))
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "dog", "sat", "the"}, agreed.Terms)
	assert.Equal(t, 4, agreed.Len())
}

func TestDigest(t *testing.T) {
	a := Agreed{Terms: []string{"ab", "c"}}
	b := Agreed{Terms: []string{"a", "bc"}}
	assert.Equal(t, a.Digest(), Agreed{Terms: []string{"ab", "c"}}.Digest())
	assert.NotEqual(t, a.Digest(), b.Digest())
}

func synchronizeGroup(t *testing.T, proposals []Proposal, opts Options) ([]Agreed, []error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	size := len(proposals)
	hub := collective.NewHub(size)
	agreed := make([]Agreed, size)
	errs := make([]error, size)
	var wg sync.WaitGroup
	for rank := 0; rank < size; rank++ {
		comm, err := collective.New(rank, size, hub, nil)
		require.NoError(t, err)
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			agreed[rank], errs[rank] = Synchronize(ctx, comm, comm.Role(), proposals[rank], opts)
		}(rank)
	}
	wg.Wait()
	return agreed, errs
}

func TestSynchronize(t *testing.T) {
	proposals := []Proposal{
		{Terms: []string{"cat", "sat", "the"}},
		{Terms: []string{"dog", "sat", "the"}},
		{Terms: nil},
		{Terms: []string{"zebra"}},
	}
	for _, verify := range []bool{false, true} {
		agreed, errs := synchronizeGroup(t, proposals, Options{Verify: verify})
		for rank := range proposals {
			require.NoError(t, errs[rank])
			assert.Equal(t, []string{"cat", "dog", "sat", "the", "zebra"}, agreed[rank].Terms, "rank %d", rank)
		}
	}
}

func TestSynchronizeEmptyVocabulary(t *testing.T) {
	agreed, errs := synchronizeGroup(t, []Proposal{{}, {}}, Options{Verify: true})
	for rank := range agreed {
		require.NoError(t, errs[rank])
		assert.Empty(t, agreed[rank].Terms)
	}
}

func TestSynchronizeRejectsForbiddenTerm(t *testing.T) {
	hub := collective.NewHub(1)
	comm, err := collective.New(0, 1, hub, nil)
	require.NoError(t, err)
	_, err = Synchronize(context.Background(), comm, comm.Role(), Proposal{Terms: []string{""}}, Options{})
	assert.ErrorIs(t, err, ErrForbiddenByte)
}

// skewed hands the verification round a wrong digest on one rank.
type skewed struct {
	*collective.Communicator
}

func (s skewed) Gather(ctx context.Context, payload []byte) ([][]byte, error) {
	bad := append([]byte(nil), payload...)
	bad[0] ^= 0xff
	return s.Communicator.Gather(ctx, bad)
}

func TestVerifyDetectsDivergence(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hub := collective.NewHub(2)
	root, err := collective.New(0, 2, hub, nil)
	require.NoError(t, err)
	worker, err := collective.New(1, 2, hub, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := Synchronize(ctx, skewed{worker}, worker.Role(), Proposal{Terms: []string{"b"}}, Options{Verify: true})
		done <- err
	}()
	_, err = Synchronize(ctx, root, root.Role(), Proposal{Terms: []string{"a"}}, Options{Verify: true})
	assert.ErrorIs(t, err, apperrors.ErrCoordination)
	require.NoError(t, <-done)
}
