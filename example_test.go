package mailverify_test

import (
	"context"
	"fmt"

	"github.com/optimode/mailverify"
)

func newExamplePipeline() *mailverify.Pipeline {
	p, err := mailverify.New(mailverify.Options{EnableSMTP: false}, nil)
	if err != nil {
		panic(err)
	}
	return p
}

func ExampleNew() {
	p := newExamplePipeline()
	defer p.Close()

	v, _ := p.ValidateSingle(context.Background(), "missing-at-sign")
	fmt.Println(v.Valid, v.Score)
	// Output: false 0
}

func ExamplePipeline_ValidateSingle_typo() {
	p := newExamplePipeline()
	defer p.Close()

	v, _ := p.ValidateSingle(context.Background(), "user@gmial.com")
	fmt.Println(v.Valid, v.Suggestion)
	// Output: false gmail.com
}

func ExamplePipeline_ValidateSingle_disposable() {
	p := newExamplePipeline()
	defer p.Close()

	v, _ := p.ValidateSingle(context.Background(), "user@mailinator.com")
	fmt.Println(v.Valid, v.Details.Disposable)
	// Output: false false
}

func ExamplePipeline_ValidateSingle_placeholder() {
	p := newExamplePipeline()
	defer p.Close()

	v, _ := p.ValidateSingle(context.Background(), "test@example.com")
	fmt.Println(v.Valid, v.Score)
	// Output: false 5
}

func ExamplePipeline_ValidateBatch() {
	p := newExamplePipeline()
	defer p.Close()

	addresses := []string{"missing-at-sign", "user@mailinator.com", "missing-at-sign"}
	results, _ := p.ValidateBatch(context.Background(), addresses, nil)

	for _, r := range results {
		fmt.Println(r.Valid, r.Score)
	}
	// Output:
	// false 0
	// false 10
}
