package scanning

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// flakyExtractor fails a configured number of times before succeeding.
type flakyExtractor struct {
	failures int
	err      error
	items    []LineItem

	calls int
}

func (f *flakyExtractor) ExtractItems(ctx context.Context, png []byte) ([]LineItem, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("transient failure")
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

func (f *flakyExtractor) Close() error { return nil }

var _ = Describe("Retrying", func() {
	var (
		backend *flakyExtractor
		retry   *Retrying
		items   []LineItem
		err     error
	)

	newRetrying := func(maxRetries int) *Retrying {
		r := NewRetrying(backend, maxRetries, time.Second)
		r.initialInterval = time.Millisecond
		return r
	}

	JustBeforeEach(func() {
		items, err = retry.ExtractItems(context.Background(), []byte("png"))
	})

	When("the backend succeeds immediately", func() {
		BeforeEach(func() {
			backend = &flakyExtractor{items: []LineItem{{Name: "Milk"}}}
			retry = newRetrying(3)
		})

		It("returns the items after one call", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
			Expect(backend.calls).To(Equal(1))
		})
	})

	When("the backend fails transiently before succeeding", func() {
		BeforeEach(func() {
			backend = &flakyExtractor{failures: 2, items: []LineItem{{Name: "Eggs"}}}
			retry = newRetrying(3)
		})

		It("retries until success", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
			Expect(backend.calls).To(Equal(3))
		})
	})

	When("the attempt budget is exhausted", func() {
		BeforeEach(func() {
			backend = &flakyExtractor{failures: 10}
			retry = newRetrying(2)
		})

		It("returns a CallError with the attempt count", func() {
			var callErr *CallError
			Expect(err).To(HaveOccurred())
			Expect(errors.As(err, &callErr)).To(BeTrue())
			Expect(callErr.Attempts).To(Equal(3))
			Expect(backend.calls).To(Equal(3))
		})
	})

	When("the backend returns a parse error", func() {
		BeforeEach(func() {
			backend = &flakyExtractor{err: &ParseError{Reason: "no JSON list found in response"}}
			retry = newRetrying(3)
		})

		It("does not retry", func() {
			Expect(backend.calls).To(Equal(1))
		})

		It("surfaces the ParseError unchanged", func() {
			var parseErr *ParseError
			Expect(err).To(HaveOccurred())
			Expect(errors.As(err, &parseErr)).To(BeTrue())
		})
	})
})
