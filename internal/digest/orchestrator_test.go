package digest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"news-digest/internal/cache"
	"news-digest/internal/cluster"
	"news-digest/internal/corpus"
	"news-digest/internal/embeddings"
	"news-digest/internal/llm"
	"news-digest/internal/logger"
	"news-digest/internal/queue"
	"news-digest/internal/toxicity"
)

func doc(title, content *string, date string, tags ...string) corpus.Document {
	return corpus.Document{Title: title, Content: content, Date: date, Tags: tags}
}

var s = corpus.StringPtr

func twoDocCorpus() []corpus.Document {
	docs := []corpus.Document{
		doc(s("A"), s("x"), "2024-03-01", "esteri"),
		doc(s("A2"), s("x2"), "2024-03-02", "politica"),
	}
	for i := range docs {
		docs[i].Index = i
	}
	return docs
}

type fixture struct {
	cache      *cache.ResultCache
	summarizer *llm.MockSummarizer
	embedder   *embeddings.MockEmbedder
	scorer     *toxicity.MockScorer
}

func newFixture() *fixture {
	return &fixture{
		cache:      cache.NewResultCache(cache.NewNoOpStore(), logger.Discard()),
		summarizer: new(llm.MockSummarizer),
		embedder:   new(embeddings.MockEmbedder),
		scorer:     new(toxicity.MockScorer),
	}
}

func (f *fixture) orchestrator(docs []corpus.Document, opts Options) *Orchestrator {
	return New(docs, Deps{
		Cache:      f.cache,
		Summarizer: f.summarizer,
		Embedder:   f.embedder,
		Scorer:     f.scorer,
		Log:        logger.Discard(),
	}, opts)
}

func TestProcessTwoDocumentCluster(t *testing.T) {
	f := newFixture()
	docs := twoDocCorpus()
	o := f.orchestrator(docs, Options{PersistDegraded: true})

	f.summarizer.On("Send", mock.Anything, mock.MatchedBy(func(p string) bool {
		return p == BuildPrompt("Title: A \n Content: x\nTitle: A2 \n Content: x2\n", "italian")
	})).Return("Merged summary").Once()
	f.embedder.On("EmbedBatch", mock.Anything, []string{"Merged summary", "A x", "A2 x2"}).
		Return([]embeddings.Vector{{1, 0}, {1, 0}, {0, 1}}, nil).Once()
	f.scorer.On("Score", mock.Anything, "Merged summary").Return(toxicity.Scores{Toxicity: 0.01}, nil).Once()

	outcome, err := o.Process(context.Background(), cluster.Cluster{ID: 0, Members: []int{0, 1}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSummarized, outcome)

	r, err := f.cache.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "Merged summary", r.Answer)
	assert.Equal(t, []int{0, 1}, r.Sources)
	require.Len(t, r.Similarity, 2)
	assert.InDelta(t, 1.0, *r.Similarity[0], 1e-9)
	assert.InDelta(t, 0.5, *r.Similarity[1], 1e-9)
	assert.Equal(t, "2024-03-01", r.Date, "date comes from the representative")
	assert.Equal(t, []string{"esteri"}, r.Tags)
	assert.Contains(t, r.Question, "Output Summary in italian: ")
	require.NotNil(t, r.Toxicity)
	assert.Equal(t, 0.01, r.Toxicity.Toxicity)

	f.summarizer.AssertExpectations(t)
	f.embedder.AssertExpectations(t)
	f.scorer.AssertExpectations(t)
}

func TestProcessIsIdempotent(t *testing.T) {
	f := newFixture()
	o := f.orchestrator(twoDocCorpus(), Options{PersistDegraded: true})

	f.summarizer.On("Send", mock.Anything, mock.Anything).Return("first").Once()
	f.embedder.On("EmbedBatch", mock.Anything, mock.Anything).
		Return([]embeddings.Vector{{1, 0}, {1, 0}, {1, 0}}, nil).Once()
	f.scorer.On("Score", mock.Anything, mock.Anything).Return(toxicity.Scores{}, nil).Once()

	c := cluster.Cluster{ID: 0, Members: []int{0, 1}}
	outcome, err := o.Process(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, OutcomeSummarized, outcome)
	before, _ := f.cache.Get(0)

	outcome, err = o.Process(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCached, outcome)

	after, _ := f.cache.Get(0)
	assert.Equal(t, before, after)
	f.summarizer.AssertNumberOfCalls(t, "Send", 1)
	f.embedder.AssertNumberOfCalls(t, "EmbedBatch", 1)
	f.scorer.AssertNumberOfCalls(t, "Score", 1)
}

func TestProcessSkipsClusterWithMissingFields(t *testing.T) {
	tests := []struct {
		name string
		doc  corpus.Document
	}{
		{"missing title", doc(nil, s("body"), "")},
		{"missing content", doc(s("title"), nil, "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			docs := append(twoDocCorpus(), tt.doc)
			o := f.orchestrator(docs, Options{PersistDegraded: true})

			outcome, err := o.Process(context.Background(), cluster.Cluster{ID: 0, Members: []int{0, 1, 2}})
			require.NoError(t, err)
			assert.Equal(t, OutcomeIncomplete, outcome)
			assert.False(t, f.cache.Contains(0))
			f.summarizer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
			assert.True(t, f.cache.Claim(0), "no claim left behind")
		})
	}
}

func TestProcessSimilarityAlignedWithMembers(t *testing.T) {
	f := newFixture()
	docs := []corpus.Document{
		doc(s("uno"), s("primo"), ""),
		doc(s("due"), s(""), ""),
		doc(s("tre"), s("terzo"), ""),
	}
	o := f.orchestrator(docs, Options{PersistDegraded: true})

	f.summarizer.On("Send", mock.Anything, mock.Anything).Return("sintesi").Once()
	f.embedder.On("EmbedBatch", mock.Anything, []string{"sintesi", "uno primo", "tre terzo"}).
		Return([]embeddings.Vector{{1, 0}, {1, 0}, {0, 1}}, nil).Once()
	f.scorer.On("Score", mock.Anything, "sintesi").Return(toxicity.Scores{}, nil).Once()

	_, err := o.Process(context.Background(), cluster.Cluster{ID: 0, Members: []int{0, 1, 2}})
	require.NoError(t, err)

	r, err := f.cache.Get(0)
	require.NoError(t, err)
	require.Len(t, r.Similarity, 3)
	assert.NotNil(t, r.Similarity[0])
	assert.Nil(t, r.Similarity[1])
	assert.NotNil(t, r.Similarity[2])
	assert.InDelta(t, 0.5, *r.Similarity[2], 1e-9)
}

func TestProcessDegradedSummary(t *testing.T) {
	tests := []struct {
		name            string
		persistDegraded bool
		wantOutcome     Outcome
		wantRecord      bool
	}{
		{"persisted", true, OutcomeDegraded, true},
		{"withheld", false, OutcomeWithheld, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			o := f.orchestrator(twoDocCorpus(), Options{PersistDegraded: tt.persistDegraded})

			f.summarizer.On("Send", mock.Anything, mock.Anything).Return(llm.Unavailable).Once()
			f.embedder.On("EmbedBatch", mock.Anything, mock.Anything).
				Return([]embeddings.Vector{{1, 0}, {1, 0}, {1, 0}}, nil).Maybe()
			f.scorer.On("Score", mock.Anything, llm.Unavailable).Return(toxicity.Scores{}, nil).Maybe()

			outcome, err := o.Process(context.Background(), cluster.Cluster{ID: 0, Members: []int{0, 1}})
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, outcome)
			assert.Equal(t, tt.wantRecord, f.cache.Contains(0))

			if tt.wantRecord {
				r, _ := f.cache.Get(0)
				assert.True(t, llm.IsUnavailable(r.Answer))
			} else {
				assert.True(t, f.cache.Claim(0), "withheld cluster stays pending")
				f.embedder.AssertNotCalled(t, "EmbedBatch", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestProcessScoringFailureLeavesClusterPending(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
	}{
		{
			name: "embedding fails",
			setup: func(f *fixture) {
				f.embedder.On("EmbedBatch", mock.Anything, mock.Anything).Return(nil, errors.New("quota")).Once()
			},
		},
		{
			name: "toxicity fails",
			setup: func(f *fixture) {
				f.embedder.On("EmbedBatch", mock.Anything, mock.Anything).
					Return([]embeddings.Vector{{1, 0}, {1, 0}, {1, 0}}, nil).Once()
				f.scorer.On("Score", mock.Anything, mock.Anything).Return(toxicity.Scores{}, errors.New("503")).Once()
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			o := f.orchestrator(twoDocCorpus(), Options{PersistDegraded: true})
			f.summarizer.On("Send", mock.Anything, mock.Anything).Return("ok").Once()
			tt.setup(f)

			outcome, err := o.Process(context.Background(), cluster.Cluster{ID: 0, Members: []int{0, 1}})
			assert.Error(t, err)
			assert.Equal(t, OutcomeFailed, outcome)
			assert.False(t, f.cache.Contains(0))
			assert.True(t, f.cache.Claim(0))
		})
	}
}

func TestProcessWithoutScorer(t *testing.T) {
	f := newFixture()
	o := New(twoDocCorpus(), Deps{
		Cache:      f.cache,
		Summarizer: f.summarizer,
		Embedder:   f.embedder,
		Log:        logger.Discard(),
	}, Options{})

	f.summarizer.On("Send", mock.Anything, mock.Anything).Return("ok").Once()
	f.embedder.On("EmbedBatch", mock.Anything, mock.Anything).
		Return([]embeddings.Vector{{1, 0}, {1, 0}, {1, 0}}, nil).Once()

	outcome, err := o.Process(context.Background(), cluster.Cluster{ID: 0, Members: []int{0, 1}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSummarized, outcome)
	r, _ := f.cache.Get(0)
	assert.Nil(t, r.Toxicity)
}

func TestProcessRejectsIndexOutsideCorpus(t *testing.T) {
	f := newFixture()
	o := f.orchestrator(twoDocCorpus(), Options{})

	outcome, err := o.Process(context.Background(), cluster.Cluster{ID: 0, Members: []int{0, 7}})
	assert.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	f.summarizer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestProcessPublishesStoredRecord(t *testing.T) {
	f := newFixture()
	q := new(queue.MockQueue)
	q.On("Enqueue", mock.Anything, mock.MatchedBy(func(task queue.Task) bool {
		return task.Type == queue.TaskTypeRecordReady
	})).Return(nil).Once()

	o := New(twoDocCorpus(), Deps{
		Cache:      f.cache,
		Summarizer: f.summarizer,
		Embedder:   f.embedder,
		Publisher:  queue.NewRecordPublisher(q, "run"),
		Log:        logger.Discard(),
	}, Options{})

	f.summarizer.On("Send", mock.Anything, mock.Anything).Return("ok").Once()
	f.embedder.On("EmbedBatch", mock.Anything, mock.Anything).
		Return([]embeddings.Vector{{1, 0}, {1, 0}, {1, 0}}, nil).Once()

	_, err := o.Process(context.Background(), cluster.Cluster{ID: 1, Members: []int{0, 1}})
	require.NoError(t, err)
	q.AssertExpectations(t)

	r, err := queue.DecodeRecord(q.Enqueued()[0])
	require.NoError(t, err)
	assert.Equal(t, 1, r.ClusterID)
	assert.Equal(t, "2024-03-02", r.Date)
}

func TestRunCheckpointsAndFlushes(t *testing.T) {
	docs := []corpus.Document{
		doc(s("a"), s("1"), ""),
		doc(s("b"), s("2"), ""),
		doc(s("c"), s("3"), ""),
		doc(nil, s("4"), ""),
	}
	st := new(cache.MockStore)
	st.On("Save", mock.Anything, mock.MatchedBy(func(m map[int]cache.Record) bool { return len(m) == 2 })).Return(nil).Once()
	st.On("Save", mock.Anything, mock.MatchedBy(func(m map[int]cache.Record) bool { return len(m) == 3 })).Return(nil).Once()

	summarizer := new(llm.MockSummarizer)
	summarizer.On("Send", mock.Anything, mock.Anything).Return("ok")

	o := New(docs, Deps{
		Cache:      cache.NewResultCache(st, logger.Discard()),
		Summarizer: summarizer,
		Embedder:   embeddings.StaticEmbedder{},
		Log:        logger.Discard(),
	}, Options{Workers: 1, CheckpointEvery: 2})

	stats := o.Run(context.Background(), []cluster.Cluster{
		{ID: 0, Members: []int{0}},
		{ID: 1, Members: []int{1}},
		{ID: 3, Members: []int{3, 2}},
		{ID: 2, Members: []int{2}},
	})

	assert.Equal(t, Stats{Clusters: 4, Summarized: 3, Incomplete: 1}, stats)
	st.AssertExpectations(t)
}

func TestRunConcurrentWorkersSummarizeEachClusterOnce(t *testing.T) {
	docs := make([]corpus.Document, 8)
	for i := range docs {
		docs[i] = doc(s("t"), s("c"), "")
	}
	var clusters []cluster.Cluster
	for round := 0; round < 3; round++ {
		for i := range docs {
			clusters = append(clusters, cluster.Cluster{ID: i, Members: []int{i}})
		}
	}

	summarizer := new(llm.MockSummarizer)
	summarizer.On("Send", mock.Anything, mock.Anything).Return("ok")

	path := filepath.Join(t.TempDir(), "records.json")
	rc := cache.NewResultCache(cache.NewFileStore(path), logger.Discard())
	o := New(docs, Deps{
		Cache:      rc,
		Summarizer: summarizer,
		Embedder:   embeddings.StaticEmbedder{},
		Log:        logger.Discard(),
	}, Options{Workers: 4, CheckpointEvery: 3})

	stats := o.Run(context.Background(), clusters)

	assert.Equal(t, len(docs), stats.Summarized)
	assert.Equal(t, 2*len(docs), stats.Cached+stats.Claimed)
	summarizer.AssertNumberOfCalls(t, "Send", len(docs))

	reloaded := cache.NewResultCache(cache.NewFileStore(path), logger.Discard())
	require.NoError(t, reloaded.Load(context.Background()))
	assert.Equal(t, len(docs), reloaded.Len())
}

func TestRunCancelledStillFlushes(t *testing.T) {
	st := new(cache.MockStore)
	st.On("Save", mock.Anything, mock.Anything).Return(nil).Once()

	o := New(twoDocCorpus(), Deps{
		Cache:      cache.NewResultCache(st, logger.Discard()),
		Summarizer: new(llm.MockSummarizer),
		Embedder:   embeddings.StaticEmbedder{},
		Log:        logger.Discard(),
	}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats := o.Run(ctx, []cluster.Cluster{{ID: 0, Members: []int{0, 1}}})

	assert.Equal(t, 0, stats.Summarized)
	st.AssertExpectations(t)
}
