package base

import (
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ajitpratap0/mcpbridge/pkg/errors"
	"github.com/ajitpratap0/mcpbridge/pkg/mcp"
	"go.uber.org/zap"
)

// ErrorHandler converts failures raised while processing a request into
// ERROR envelopes and keeps per-code counts.
type ErrorHandler struct {
	logger      *zap.Logger
	errorCounts map[mcp.ErrorCode]int64
	errorMutex  sync.RWMutex
	totalErrors int64
	panics      int64
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorHandler{
		logger:      logger,
		errorCounts: make(map[mcp.ErrorCode]int64),
	}
}

// Classify maps an error onto the envelope taxonomy. Configuration errors
// have no envelope code and report false.
func (eh *ErrorHandler) Classify(err error) (mcp.ErrorCode, bool) {
	switch errors.TypeOf(err) {
	case errors.ErrorTypeConfig:
		return "", false
	case errors.ErrorTypeConnection, errors.ErrorTypeTimeout,
		errors.ErrorTypeHTTPStatus, errors.ErrorTypeCanceled:
		return mcp.CodeAPIRequestError, true
	case errors.ErrorTypeQuery:
		return mcp.CodeGraphQLError, true
	default:
		return mcp.CodeProcessingError, true
	}
}

// HandleError turns err into the ERROR envelope answering req. A
// configuration error is returned unchanged with a nil message.
func (eh *ErrorHandler) HandleError(req *mcp.Message, err error) (*mcp.Message, error) {
	if err == nil {
		return nil, nil
	}

	code, ok := eh.Classify(err)
	if !ok {
		eh.logger.Error("configuration error",
			zap.String("intent", req.Payload.Intent),
			zap.Error(err))
		return nil, err
	}

	atomic.AddInt64(&eh.totalErrors, 1)
	eh.incrementErrorCount(code)

	details := make(map[string]interface{})
	switch code {
	case mcp.CodeAPIRequestError:
		if d := errors.DetailsOf(err); d != nil {
			if v, ok := d["status_code"]; ok {
				details["status_code"] = v
			}
			if v, ok := d["response_body"]; ok {
				details["response_body"] = v
			}
		}
		details["error_type"] = string(errors.TypeOf(err))
	case mcp.CodeGraphQLError:
		for k, v := range errors.DetailsOf(err) {
			details[k] = v
		}
	default:
		details["exception_type"] = string(errors.TypeOf(err))
		details["error_class"] = fmt.Sprintf("%T", rootCause(err))
	}

	fields := []zap.Field{
		zap.String("error_code", string(code)),
		zap.String("intent", req.Payload.Intent),
		zap.Error(err),
	}
	if code == mcp.CodeProcessingError {
		eh.logger.Error("request processing failed", fields...)
	} else {
		eh.logger.Warn("backend call failed", fields...)
	}

	return mcp.CreateError(req, code, messageOf(err), details), nil
}

// Recover converts a recovered panic into a PROCESSING_ERROR envelope.
func (eh *ErrorHandler) Recover(req *mcp.Message, recovered interface{}) *mcp.Message {
	atomic.AddInt64(&eh.panics, 1)
	atomic.AddInt64(&eh.totalErrors, 1)
	eh.incrementErrorCount(mcp.CodeProcessingError)

	eh.logger.Error("panic while processing request",
		zap.String("intent", req.Payload.Intent),
		zap.Any("panic", recovered),
		zap.Stack("stack"))

	return mcp.CreateError(req, mcp.CodeProcessingError,
		fmt.Sprintf("Error processing request: %v", recovered),
		map[string]interface{}{
			"exception_type": "panic",
			"error_class":    fmt.Sprintf("%T", recovered),
		})
}

// GetErrorStats returns error statistics
func (eh *ErrorHandler) GetErrorStats() map[string]interface{} {
	eh.errorMutex.RLock()
	defer eh.errorMutex.RUnlock()

	counts := make(map[string]int64, len(eh.errorCounts))
	for k, v := range eh.errorCounts {
		counts[string(k)] = v
	}

	return map[string]interface{}{
		"total_errors": atomic.LoadInt64(&eh.totalErrors),
		"panics":       atomic.LoadInt64(&eh.panics),
		"error_counts": counts,
	}
}

func (eh *ErrorHandler) incrementErrorCount(code mcp.ErrorCode) {
	eh.errorMutex.Lock()
	defer eh.errorMutex.Unlock()
	eh.errorCounts[code]++
}

// messageOf renders err without the error type prefix of structured errors.
func messageOf(err error) string {
	var e *errors.Error
	if stderrors.As(err, &e) {
		if e.Cause != nil {
			return e.Message + ": " + e.Cause.Error()
		}
		return e.Message
	}
	return err.Error()
}

func rootCause(err error) error {
	for {
		next := stderrors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
