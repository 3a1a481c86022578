package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	pkgErrors "SimpleTodoAPI/pkg/errors"
	"SimpleTodoAPI/pkg/logger"
)

// BodyParserConfig ограничения парсеров тела запроса
type BodyParserConfig struct {
	// Limit максимальный размер тела в байтах
	Limit int64
	// ParameterLimit максимальное число параметров в form-urlencoded теле
	ParameterLimit int
}

type jsonBodyKey struct{}
type formBodyKey struct{}

// JSONBody возвращает разобранное JSON тело запроса
func JSONBody(ctx context.Context) (interface{}, bool) {
	body := ctx.Value(jsonBodyKey{})
	return body, body != nil
}

// FormBody возвращает разобранное form-urlencoded тело запроса
func FormBody(ctx context.Context) (url.Values, bool) {
	body, ok := ctx.Value(formBodyKey{}).(url.Values)
	return body, ok
}

// BodyParserMiddleware разбирает JSON и form-urlencoded тела до маршрутизации.
// Тело сохраняется в контексте и остается доступным для повторного чтения.
func BodyParserMiddleware(cfg BodyParserConfig, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !hasBody(r) {
				next.ServeHTTP(w, r)
				return
			}

			mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			var parseErr *pkgErrors.Error
			switch {
			case isJSONType(mediaType):
				r, parseErr = parseJSON(w, r, params["charset"], cfg)
			case mediaType == "application/x-www-form-urlencoded":
				r, parseErr = parseForm(w, r, params["charset"], cfg)
			}

			if parseErr != nil {
				log.Warn("Failed to parse request body",
					logger.String("method", r.Method),
					logger.String("path", r.URL.Path),
					logger.String("code", string(parseErr.Code)),
					logger.Error(parseErr),
					logger.CtxField(r.Context()))
				pkgErrors.WriteJSON(w, parseErr)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// hasBody сообщает, объявил ли клиент тело запроса
func hasBody(r *http.Request) bool {
	// -1 означает неизвестную длину (chunked)
	return r.ContentLength != 0
}

func isJSONType(mediaType string) bool {
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// readBody читает тело с учетом лимита
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, *pkgErrors.Error) {
	if r.ContentLength > limit {
		return nil, pkgErrors.New(pkgErrors.ErrPayloadTooLarge, "request entity too large")
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, pkgErrors.New(pkgErrors.ErrPayloadTooLarge, "request entity too large")
		}
		return nil, pkgErrors.Wrap(err, pkgErrors.ErrValidation, "request aborted")
	}
	return data, nil
}

func parseJSON(w http.ResponseWriter, r *http.Request, charset string, cfg BodyParserConfig) (*http.Request, *pkgErrors.Error) {
	if charset = strings.ToLower(charset); charset != "" && !strings.HasPrefix(charset, "utf-") {
		return r, pkgErrors.New(pkgErrors.ErrUnsupportedMediaType, "unsupported charset").
			WithDetails(strings.ToUpper(charset))
	}

	data, readErr := readBody(w, r, cfg.Limit)
	if readErr != nil {
		return r, readErr
	}

	var body interface{} = map[string]interface{}{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 {
		// Верхний уровень должен быть объектом или массивом
		if trimmed[0] != '{' && trimmed[0] != '[' {
			return r, pkgErrors.New(pkgErrors.ErrValidation, "invalid JSON body").
				WithDetails("top-level value must be an object or array")
		}
		if err := json.Unmarshal(trimmed, &body); err != nil {
			return r, pkgErrors.Wrap(err, pkgErrors.ErrValidation, "invalid JSON body").
				WithDetails(err.Error())
		}
	}

	r = r.WithContext(context.WithValue(r.Context(), jsonBodyKey{}, body))
	r.Body = io.NopCloser(bytes.NewReader(data))
	return r, nil
}

func parseForm(w http.ResponseWriter, r *http.Request, charset string, cfg BodyParserConfig) (*http.Request, *pkgErrors.Error) {
	if charset = strings.ToLower(charset); charset != "" && charset != "utf-8" {
		return r, pkgErrors.New(pkgErrors.ErrUnsupportedMediaType, "unsupported charset").
			WithDetails(strings.ToUpper(charset))
	}

	data, readErr := readBody(w, r, cfg.Limit)
	if readErr != nil {
		return r, readErr
	}

	if len(data) > 0 && strings.Count(string(data), "&")+1 > cfg.ParameterLimit {
		return r, pkgErrors.New(pkgErrors.ErrPayloadTooLarge, "too many parameters")
	}

	values := parseFormValues(string(data))

	r = r.WithContext(context.WithValue(r.Context(), formBodyKey{}, values))
	r.PostForm = values
	r.Form = make(url.Values, len(values))
	for key, vs := range r.URL.Query() {
		r.Form[key] = append(r.Form[key], vs...)
	}
	for key, vs := range values {
		r.Form[key] = append(r.Form[key], vs...)
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return r, nil
}

// parseFormValues разбирает form-urlencoded тело без ошибок по содержимому:
// разделитель только "&", ";" остается частью значения,
// некорректные escape-последовательности сохраняются как есть
func parseFormValues(body string) url.Values {
	values := make(url.Values)
	for _, pair := range strings.Split(body, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		values.Add(unescapeForm(key), unescapeForm(value))
	}
	return values
}

func unescapeForm(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return strings.ReplaceAll(s, "+", " ")
	}
	return decoded
}
