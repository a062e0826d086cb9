package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is used for every model the queue meters.
const DefaultEncoding = "cl100k_base"

// FallbackEstimate is returned when the encoder cannot be initialised.
const FallbackEstimate = 1000

// Estimator counts tokens with a lazily initialised tiktoken encoding.
type Estimator struct {
	encoding string
	fallback int

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

// NewEstimator creates an estimator for encoding. An empty encoding selects
// cl100k_base; a non-positive fallback selects FallbackEstimate.
func NewEstimator(encoding string, fallback int) *Estimator {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	if fallback <= 0 {
		fallback = FallbackEstimate
	}
	return &Estimator{encoding: encoding, fallback: fallback}
}

// init lazily 初始化 tiktoken 编码(可以在第一次使用时下载数据).
func (e *Estimator) init() error {
	e.once.Do(func() {
		enc, err := tiktoken.GetEncoding(e.encoding)
		if err != nil {
			e.initErr = fmt.Errorf("init tiktoken encoding %s: %w", e.encoding, err)
			return
		}
		e.enc = enc
	})
	return e.initErr
}

// CountTokens returns the exact token count or the initialisation error.
func (e *Estimator) CountTokens(text string) (int, error) {
	if err := e.init(); err != nil {
		return 0, err
	}
	return len(e.enc.Encode(text, nil, nil)), nil
}

// Estimate never fails: it returns the fallback when counting is unavailable.
func (e *Estimator) Estimate(text string) int {
	n, err := e.CountTokens(text)
	if err != nil {
		return e.fallback
	}
	return n
}

// Fallback returns the fixed estimate used when counting fails.
func (e *Estimator) Fallback() int { return e.fallback }

// Name 返回分词器的名称.
func (e *Estimator) Name() string {
	return fmt.Sprintf("tiktoken[%s]", e.encoding)
}
