package parser

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type scriptedValidator struct {
	calls  int
	script []error // 每次调用按序返回的错误，nil 表示成功
}

func (v *scriptedValidator) Validate(_ context.Context, _ string, entities EntitySet) (*EnhancedResult, error) {
	idx := v.calls
	v.calls++
	if idx < len(v.script) && v.script[idx] != nil {
		return nil, v.script[idx]
	}
	return &EnhancedResult{
		EntitySet:    entities,
		AIConfidence: ConfidenceScores{SectionSkills: 90},
	}, nil
}

func newTestEnhanceStage(v AiValidator, attempts int) *AIEnhancementStage {
	return NewAIEnhancementStage(v, 1, attempts, time.Second, time.Millisecond, nil)
}

func TestEnhanceSucceedsFirstAttempt(t *testing.T) {
	validator := &scriptedValidator{}
	stage := newTestEnhanceStage(validator, 3)

	result, err := stage.Enhance(context.Background(), "job-1", "text", EmptyEntitySet())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AIConfidence[SectionSkills] != 90 {
		t.Errorf("unexpected ai confidence: %v", result.AIConfidence)
	}
	if validator.calls != 1 {
		t.Errorf("expected 1 call, got %d", validator.calls)
	}
}

func TestEnhanceRetriesThenSucceeds(t *testing.T) {
	validator := &scriptedValidator{script: []error{
		errors.New("connection reset"),
		fmt.Errorf("%w: not json", ErrMalformedResponse),
		nil,
	}}
	stage := newTestEnhanceStage(validator, 3)

	_, err := stage.Enhance(context.Background(), "job-1", "text", EmptyEntitySet())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if validator.calls != 3 {
		t.Errorf("expected 3 calls, got %d", validator.calls)
	}
}

func TestEnhanceExhaustsBudget(t *testing.T) {
	validator := &scriptedValidator{script: []error{
		fmt.Errorf("%w: html page", ErrMalformedResponse),
		fmt.Errorf("%w: truncated", ErrMalformedResponse),
		fmt.Errorf("%w: empty", ErrMalformedResponse),
	}}
	stage := newTestEnhanceStage(validator, 3)

	_, err := stage.Enhance(context.Background(), "job-1", "text", EmptyEntitySet())

	var enhErr *EnhancementError
	if !errors.As(err, &enhErr) {
		t.Fatalf("expected *EnhancementError, got %v", err)
	}
	if enhErr.Cause != CauseMalformedResponse {
		t.Errorf("expected malformed_response cause, got %s", enhErr.Cause)
	}
	if enhErr.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", enhErr.Attempts)
	}
	if validator.calls != 3 {
		t.Errorf("expected 3 calls, got %d", validator.calls)
	}
}

func TestEnhanceClassifiesTimeout(t *testing.T) {
	validator := &scriptedValidator{script: []error{
		context.DeadlineExceeded,
		context.DeadlineExceeded,
	}}
	stage := newTestEnhanceStage(validator, 2)

	_, err := stage.Enhance(context.Background(), "job-1", "text", EmptyEntitySet())

	var enhErr *EnhancementError
	if !errors.As(err, &enhErr) {
		t.Fatalf("expected *EnhancementError, got %v", err)
	}
	if enhErr.Cause != CauseTimeout {
		t.Errorf("expected timeout cause, got %s", enhErr.Cause)
	}
}

func TestEnhanceClassifiesTransportError(t *testing.T) {
	validator := &scriptedValidator{script: []error{
		errors.New("dial tcp: refused"),
	}}
	stage := newTestEnhanceStage(validator, 1)

	_, err := stage.Enhance(context.Background(), "job-1", "text", EmptyEntitySet())

	var enhErr *EnhancementError
	if !errors.As(err, &enhErr) {
		t.Fatalf("expected *EnhancementError, got %v", err)
	}
	if enhErr.Cause != CauseTransportError {
		t.Errorf("expected transport_error cause, got %s", enhErr.Cause)
	}
}

func TestEnhanceParentCancellationIsNotAStageFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	validator := &scriptedValidator{script: []error{context.Canceled}}
	stage := newTestEnhanceStage(validator, 3)

	_, err := stage.Enhance(ctx, "job-1", "text", EmptyEntitySet())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	var enhErr *EnhancementError
	if errors.As(err, &enhErr) {
		t.Fatal("parent cancellation must not be wrapped as EnhancementError")
	}
}
