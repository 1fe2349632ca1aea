package services

import (
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors"
)

// testEnv wires the services over in-memory collaborators.
type testEnv struct {
	vectors   *mocks.MockVectorStore
	settings  *mocks.MockSettingsStore
	documents *mocks.MockDocumentStore
	lifecycle *mocks.MockJobQueue
	processor *mocks.MockJobQueue
	embedder  *mocks.MockEmbeddingService
	chat      *mocks.MockChatService
	providers *mocks.MockProviderFactory

	settingsSvc  driving.SettingsService
	indexing     driving.IndexingService
	scheduler    driving.EventScheduler
	retrieval    driving.RetrievalService
	chatSvc      driving.ChatService
	status       driving.StatusService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		vectors:   mocks.NewMockVectorStore(),
		settings:  mocks.NewMockSettingsStore(),
		documents: mocks.NewMockDocumentStore(),
		lifecycle: mocks.NewMockJobQueue(domain.QueueLifecycle),
		processor: mocks.NewMockJobQueue(domain.QueueProcessor),
		embedder:  mocks.NewMockEmbeddingService(),
		chat:      mocks.NewMockChatService("Hello", " world"),
	}
	env.providers = &mocks.MockProviderFactory{Embedding: env.embedder, Chat: env.chat}

	defaults := domain.DefaultEffectiveSettings()
	defaults.Embedding.APIKey = "sk-default"
	defaults.Chat.APIKey = "sk-default"

	env.settingsSvc = NewSettingsService(SettingsServiceConfig{Store: env.settings, Defaults: defaults})
	env.indexing = NewIndexingService(IndexingServiceConfig{
		Store:     env.vectors,
		Settings:  env.settingsSvc,
		Providers: env.providers,
		Pipeline:  postprocessors.Build,
	})
	env.scheduler = NewEventScheduler(EventSchedulerConfig{
		Lifecycle:     env.lifecycle,
		Processor:     env.processor,
		Documents:     env.documents,
		Indexer:       env.indexing,
		DebounceDelay: time.Minute,
	})
	env.retrieval = NewRetrievalService(RetrievalServiceConfig{
		Store:     env.vectors,
		Settings:  env.settingsSvc,
		Providers: env.providers,
	})
	env.chatSvc = NewChatService(ChatServiceConfig{
		Retrieval: env.retrieval,
		Settings:  env.settingsSvc,
		Providers: env.providers,
	})
	env.status = NewStatusService(StatusServiceConfig{
		Index:     env.vectors,
		Queues:    []driven.JobQueue{env.lifecycle, env.processor},
		Documents: env.documents,
	})
	return env
}

// publishedDoc returns a published document updated at the given time.
func publishedDoc(id string, updatedAt time.Time) *domain.Document {
	published := updatedAt.Add(-time.Hour)
	return &domain.Document{
		ID:           id,
		TeamID:       "team-1",
		CollectionID: "col-1",
		Title:        "Doc " + id,
		Text:         "Some content about " + id,
		MimeType:     "text/plain",
		UpdatedAt:    updatedAt,
		PublishedAt:  &published,
	}
}

func source(id, collection string, score float64) domain.RetrievedSource {
	return domain.RetrievedSource{
		ID:      id,
		Content: "content " + id,
		Metadata: domain.ChunkMetadata{
			DocumentID:   "doc-" + id,
			TeamID:       "team-1",
			CollectionID: collection,
		},
		Score: score,
	}
}
