package config_test

import (
	"os"
	"path/filepath"

	. "github.com/mudler/ragcontext/pkg/config"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/pflag"
)

func setenv(key, value string) {
	old, had := os.LookupEnv(key)
	Expect(os.Setenv(key, value)).To(Succeed())
	DeferCleanup(func() {
		if had {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})
}

var _ = Describe("Load", func() {
	It("applies defaults", func() {
		cfg, err := Load(New(), "")
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.ListenAddress).To(Equal(":8080"))
		Expect(cfg.VectorEngine).To(Equal(VectorEngineUpstash))
		Expect(cfg.RerankEngine).To(Equal(RerankEngineCohere))
		Expect(cfg.QdrantPort).To(Equal(6334))
		Expect(cfg.RAG.TopK).To(Equal(5))
		Expect(cfg.RAG.IncludeData).To(BeTrue())
		Expect(cfg.RAG.UseReranking).To(BeTrue())
		Expect(cfg.RAG.RerankModel).To(Equal("rerank-english-v2.0"))
		Expect(cfg.RAG.RelevanceThreshold).To(Equal(0.1))
	})

	It("reads the provider credentials from their usual variables", func() {
		setenv("UPSTASH_VECTOR_REST_URL", "https://vector.example")
		setenv("UPSTASH_VECTOR_REST_TOKEN", "tok")
		setenv("COHERE_API_KEY", "co")

		cfg, err := Load(New(), "")
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.UpstashURL).To(Equal("https://vector.example"))
		Expect(cfg.UpstashToken).To(Equal("tok"))
		Expect(cfg.CohereAPIKey).To(Equal("co"))
	})

	It("reads upper cased keys from the environment", func() {
		setenv("VECTOR_ENGINE", " Chromem ")
		setenv("RAG_TOP_K", "9")
		setenv("OPENAI_API_KEY", "sk")

		cfg, err := Load(New(), "")
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.VectorEngine).To(Equal(VectorEngineChromem))
		Expect(cfg.RAG.TopK).To(Equal(9))
		Expect(cfg.OpenAIAPIKey).To(Equal("sk"))
	})

	It("reads a config file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "config.yaml")
		Expect(os.WriteFile(path, []byte("vector_engine: qdrant\nqdrant_port: 7000\nrag_use_reranking: false\n"), 0o600)).To(Succeed())

		cfg, err := Load(New(), path)
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.VectorEngine).To(Equal(VectorEngineQdrant))
		Expect(cfg.QdrantPort).To(Equal(7000))
		Expect(cfg.RAG.UseReranking).To(BeFalse())
	})

	It("fails on a missing config file", func() {
		_, err := Load(New(), filepath.Join(GinkgoT().TempDir(), "nope.yaml"))
		Expect(err).To(MatchError(ContainSubstring("reading config")))
	})

	It("prefers bound flags", func() {
		v := New()
		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.String("listen-address", "", "")
		flags.Int("rag-top-k", 0, "")
		flags.Bool("verbose", false, "")
		Expect(BindFlags(v, flags)).To(Succeed())
		Expect(flags.Parse([]string{"--listen-address", ":9090", "--rag-top-k", "3"})).To(Succeed())

		cfg, err := Load(v, "")
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.ListenAddress).To(Equal(":9090"))
		Expect(cfg.RAG.TopK).To(Equal(3))
	})
})

var _ = Describe("Validate", func() {
	var cfg *Config

	BeforeEach(func() {
		var err error
		cfg, err = Load(New(), "")
		Expect(err).ToNot(HaveOccurred())
		cfg.UpstashURL = "https://vector.example"
		cfg.UpstashToken = "tok"
		cfg.CohereAPIKey = "co"
	})

	It("has no warnings for a complete configuration", func() {
		Expect(cfg.Validate()).To(BeEmpty())
	})

	It("warns about missing upstash credentials", func() {
		cfg.UpstashToken = ""
		Expect(cfg.Validate()).To(ContainElement(ContainSubstring("upstash_token")))
	})

	It("warns about missing cohere credentials", func() {
		cfg.CohereAPIKey = ""
		Expect(cfg.Validate()).To(ContainElement(ContainSubstring("cohere_api_key")))
	})

	It("warns about local engines without embeddings", func() {
		cfg.VectorEngine = VectorEnginePostgres
		warnings := cfg.Validate()
		Expect(warnings).To(ContainElement(ContainSubstring("openai_api_key")))
		Expect(warnings).To(ContainElement(ContainSubstring("database_url")))
	})

	It("warns about unknown engines", func() {
		cfg.VectorEngine = "pinecone"
		cfg.RerankEngine = "voyage"
		warnings := cfg.Validate()
		Expect(warnings).To(ContainElement(ContainSubstring("pinecone")))
		Expect(warnings).To(ContainElement(ContainSubstring("voyage")))
	})

	It("warns about non positive sizes", func() {
		cfg.RAG.TopK = 0
		cfg.MaxChunkSize = -1
		Expect(cfg.Validate()).To(HaveLen(2))
	})
})
