package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dyike/CortexFolio/internal/apperr"
)

type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

// Dispatch calls the named method and returns a JSON Response.
func (s *Service) Dispatch(method string, paramsJSON string) string {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	var result any
	var err error

	switch method {
	case "system.info":
		result = s.SystemInfo()
	case "market.quote":
		result, err = s.Quote(ctx, paramsJSON)
	case "market.history":
		result, err = s.History(ctx, paramsJSON)
	case "market.profile":
		result, err = s.Profile(ctx, paramsJSON)
	case "portfolio.risk":
		result, err = s.Portfolio(ctx, "risk", paramsJSON)
	case "portfolio.performance":
		result, err = s.Portfolio(ctx, "performance", paramsJSON)
	case "portfolio.holdings":
		result, err = s.Portfolio(ctx, "holdings", paramsJSON)
	case "portfolio.report":
		result, err = s.Portfolio(ctx, "report", paramsJSON)
	case "news.headlines":
		result, err = s.Headlines(ctx, paramsJSON)
	case "news.ingest":
		result, err = s.Ingest(ctx, paramsJSON)
	case "articles.list":
		result, err = s.Articles(ctx, paramsJSON)
	case "articles.query":
		result, err = s.Query(ctx, paramsJSON)
	case "config.get":
		result, err = s.Config()
	case "config.update":
		result, err = s.UpdateConfig(paramsJSON)
	default:
		return jsonResp(404, "Method not found", nil)
	}
	if err != nil {
		return jsonResp(errorCode(err), err.Error(), nil)
	}
	return jsonResp(200, "Ok", result)
}

func errorCode(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidPortfolio):
		return 400
	case errors.Is(err, apperr.ErrDataUnavailable):
		return 404
	case errors.Is(err, apperr.ErrUpstream), errors.Is(err, apperr.ErrRejected):
		return 502
	case errors.Is(err, context.DeadlineExceeded):
		return 504
	default:
		return 500
	}
}

func jsonResp(code int, msg string, data any) string {
	resp := Response{Code: code, Msg: msg, Data: data}
	b, _ := json.Marshal(resp)
	return string(b)
}
