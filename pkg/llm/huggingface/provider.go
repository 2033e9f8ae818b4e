// Package huggingface 提供 HuggingFace Inference API 供应商实现。
// Embedding 使用 feature-extraction 管道，Chat 使用 text-generation 接口。
package huggingface

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kart-io/legal-rag/pkg/llm"
	"github.com/kart-io/legal-rag/pkg/utils/httpclient"
	"github.com/kart-io/legal-rag/pkg/utils/json"
)

// ProviderName 是 HuggingFace 供应商的名称标识符
const ProviderName = "huggingface"

func init() {
	llm.RegisterEmbeddingProvider(ProviderName, func(config map[string]any) (llm.EmbeddingProvider, error) {
		return NewProvider(config)
	})
	llm.RegisterChatProvider(ProviderName, func(config map[string]any) (llm.ChatProvider, error) {
		return NewProvider(config)
	})
}

// Config HuggingFace 供应商配置。
type Config struct {
	// BaseURL API 基础地址。
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey HuggingFace API Token，可为空（匿名调用受限流）。
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// Model 模型 ID，同时用于 Embedding 与 Text Generation。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 最大重试次数。
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`

	// WaitForModel 如果模型正在加载，是否等待。
	WaitForModel bool `json:"wait_for_model" mapstructure:"wait_for_model"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      "https://api-inference.huggingface.co",
		Model:        "sentence-transformers/all-MiniLM-L6-v2",
		Timeout:      60 * time.Second,
		WaitForModel: true,
	}
}

// Provider HuggingFace 供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

var _ llm.Provider = (*Provider)(nil)

// NewProvider 从配置 map 创建 HuggingFace 供应商。
func NewProvider(configMap map[string]any) (*Provider, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := configMap["api_key"].(string); ok {
		cfg.APIKey = v
	}
	if v, ok := configMap["model"].(string); ok && v != "" {
		cfg.Model = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["max_retries"].(int); ok && v >= 0 {
		cfg.MaxRetries = v
	}
	if v, ok := configMap["wait_for_model"].(bool); ok {
		cfg.WaitForModel = v
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("huggingface: base_url is required")
	}

	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 HuggingFace 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Provider{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout, cfg.MaxRetries),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

// Model 返回模型 ID。
func (p *Provider) Model() string {
	return p.config.Model
}

// embeddingRequest HuggingFace Feature Extraction API 请求体。
type embeddingRequest struct {
	Inputs  []string     `json:"inputs"`
	Options *callOptions `json:"options,omitempty"`
}

type callOptions struct {
	WaitForModel bool `json:"wait_for_model,omitempty"`
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := embeddingRequest{Inputs: texts}
	if p.config.WaitForModel {
		reqBody.Options = &callOptions{WaitForModel: true}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("huggingface: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/pipeline/feature-extraction/%s", p.config.BaseURL, p.config.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("huggingface: build request: %w", err)
	}
	p.setHeaders(req)

	resp, err := p.client.DoRequest(req)
	if err != nil {
		return nil, fmt.Errorf("huggingface: embed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("huggingface: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &httpclient.StatusError{StatusCode: resp.StatusCode, Body: truncate(string(bodyBytes))}
	}

	embeddings, err := decodeEmbeddings(bodyBytes)
	if err != nil {
		return nil, fmt.Errorf("huggingface: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("huggingface: expected %d embeddings, got %d", len(texts), len(embeddings))
	}
	return embeddings, nil
}

// decodeEmbeddings 解析 feature-extraction 响应。
// 句向量模型返回 [][]float32；部分模型返回 token 级别的 [][][]float32，需要取平均。
func decodeEmbeddings(data []byte) ([][]float32, error) {
	var embeddings [][]float32
	if err := json.Unmarshal(data, &embeddings); err == nil {
		return embeddings, nil
	}

	var tokenEmbeddings [][][]float32
	if err := json.Unmarshal(data, &tokenEmbeddings); err != nil {
		return nil, fmt.Errorf("decode embeddings: %w", err)
	}

	embeddings = make([][]float32, len(tokenEmbeddings))
	for i, tokens := range tokenEmbeddings {
		embeddings[i] = meanPool(tokens)
	}
	return embeddings, nil
}

func meanPool(tokens [][]float32) []float32 {
	if len(tokens) == 0 {
		return nil
	}
	out := make([]float32, len(tokens[0]))
	for _, token := range tokens {
		for j, v := range token {
			if j < len(out) {
				out[j] += v
			}
		}
	}
	for j := range out {
		out[j] /= float32(len(tokens))
	}
	return out
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("huggingface: no embedding returned")
	}
	return embeddings[0], nil
}

// generationRequest HuggingFace Text Generation API 请求体。
type generationRequest struct {
	Inputs     string            `json:"inputs"`
	Parameters *generationParams `json:"parameters,omitempty"`
	Options    *callOptions      `json:"options,omitempty"`
}

type generationParams struct {
	MaxNewTokens   int      `json:"max_new_tokens,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	ReturnFullText bool     `json:"return_full_text"`
}

// generationResponse HuggingFace Text Generation API 响应体。
type generationResponse struct {
	GeneratedText string `json:"generated_text"`
}

// Chat 进行多轮对话，消息按 Mistral 指令模板拼接。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (*llm.GenerateResponse, error) {
	return p.generate(ctx, formatMessages(messages), llm.ApplyGenerateOptions(opts...))
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string, opts ...llm.GenerateOption) (*llm.GenerateResponse, error) {
	messages := make([]llm.Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})
	return p.Chat(ctx, messages, opts...)
}

func (p *Provider) generate(ctx context.Context, prompt string, o llm.GenerateOptions) (*llm.GenerateResponse, error) {
	reqBody := generationRequest{
		Inputs: prompt,
		Parameters: &generationParams{
			MaxNewTokens: o.MaxTokens,
			Temperature:  o.Temperature,
		},
	}
	if p.config.WaitForModel {
		reqBody.Options = &callOptions{WaitForModel: true}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("huggingface: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s", p.config.BaseURL, p.config.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("huggingface: build request: %w", err)
	}
	p.setHeaders(req)

	var responses []generationResponse
	if err := p.client.DoJSON(req, &responses); err != nil {
		return nil, fmt.Errorf("huggingface: generate: %w", err)
	}
	if len(responses) == 0 {
		return nil, fmt.Errorf("huggingface: empty generation response")
	}

	return &llm.GenerateResponse{Content: strings.TrimSpace(responses[0].GeneratedText)}, nil
}

// formatMessages 将消息格式化为 Mistral 对话模板。
func formatMessages(messages []llm.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem, llm.RoleUser:
			fmt.Fprintf(&b, "[INST] %s [/INST]\n", msg.Content)
		case llm.RoleAssistant:
			b.WriteString(msg.Content)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// setHeaders 设置请求头。
func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}
}

func truncate(s string) string {
	const limit = 4 << 10
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
