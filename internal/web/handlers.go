package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/sheetrest/internal/core"
	"github.com/JonMunkholm/sheetrest/internal/logging"
)

// optionsMessage is the body of a preflight response.
const optionsMessage = `OPTIONS request returned with "HTTP ok" status`

// handleAPI dispatches a request under the API prefix by method and path
// segments.
func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	segments := core.ParsePath(strings.TrimPrefix(r.URL.EscapedPath(), s.prefix))

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Server.RequestTimeout)
	defer cancel()
	r = r.WithContext(ctx)

	logging.FromContext(ctx).Debug("dispatch", "method", r.Method, "segments", len(segments))

	var (
		result any
		err    error
	)
	switch r.Method {
	case http.MethodGet:
		result, err = s.dispatchGet(r, segments)
	case http.MethodPost:
		result, err = s.handleInsert(r, segments)
	case http.MethodPatch:
		result, err = s.handlePatch(r, segments)
	case http.MethodDelete:
		result, err = s.handleDelete(r, segments)
	case http.MethodOptions:
		result = map[string]string{"message": optionsMessage}
	default:
		err = fmt.Errorf("%w: %s", core.ErrUnsupportedMethod, r.Method)
	}

	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// dispatchGet routes a read by its operation selector.
func (s *Server) dispatchGet(r *http.Request, seg []string) (any, error) {
	ctx := r.Context()

	switch {
	case seg[0] == core.OpDocInfo && len(seg) == 1:
		return s.service.DocInfo(ctx)

	case seg[0] == core.OpGetRows && len(seg) == 2:
		sheet, err := core.SheetIndexArg(seg[1])
		if err != nil {
			return nil, err
		}
		page, err := pageParams(r)
		if err != nil {
			return nil, err
		}
		return s.service.ListRows(ctx, sheet, page)

	case seg[0] == core.OpGetRows && len(seg) == 3:
		sheet, id, err := sheetAndID(seg[1], seg[2])
		if err != nil {
			return nil, err
		}
		return s.service.GetRow(ctx, sheet, id)

	case seg[0] == core.OpFindRowByID && len(seg) == 3:
		sheet, id, err := sheetAndID(seg[1], seg[2])
		if err != nil {
			return nil, err
		}
		return s.service.FindRowByID(ctx, sheet, id)

	case seg[0] == core.OpFindRowByColumnValue && len(seg) == 4:
		sheet, err := core.SheetIndexArg(seg[1])
		if err != nil {
			return nil, err
		}
		return s.service.FindRowByColumnValue(ctx, sheet, seg[2], seg[3])
	}

	return nil, fmt.Errorf("%w: invalid GET request, check the path after %s", core.ErrMalformedRequest, s.prefix)
}

// handleInsert handles POST {sheet}.
func (s *Server) handleInsert(r *http.Request, seg []string) (any, error) {
	if len(seg) != 1 {
		return nil, fmt.Errorf("%w: POST request must contain only 1 parameter (sheet index)", core.ErrMalformedRequest)
	}
	sheet, err := core.SheetIndexArg(seg[0])
	if err != nil {
		return nil, err
	}
	body, err := s.readBody(r)
	if err != nil {
		return nil, err
	}
	return s.service.InsertRow(r.Context(), sheet, body)
}

// handlePatch handles PATCH {sheet}/{id}.
func (s *Server) handlePatch(r *http.Request, seg []string) (any, error) {
	if len(seg) != 2 {
		return nil, fmt.Errorf("%w: PATCH request must contain 2 parameters (sheet index, row id)", core.ErrMalformedRequest)
	}
	sheet, id, err := sheetAndID(seg[0], seg[1])
	if err != nil {
		return nil, err
	}
	body, err := s.readBody(r)
	if err != nil {
		return nil, err
	}
	return s.service.PatchRow(r.Context(), sheet, id, body)
}

// handleDelete handles DELETE {sheet}/{id}.
func (s *Server) handleDelete(r *http.Request, seg []string) (any, error) {
	if len(seg) != 2 {
		return nil, fmt.Errorf("%w: DELETE request must contain 2 parameters (sheet index, row id)", core.ErrMalformedRequest)
	}
	sheet, id, err := sheetAndID(seg[0], seg[1])
	if err != nil {
		return nil, err
	}
	return s.service.DeleteRow(r.Context(), sheet, id)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.respondError(w, r, fmt.Errorf("%w: %s is outside %s", core.ErrMalformedRequest, r.URL.Path, s.prefix))
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.respondError(w, r, fmt.Errorf("%w: %s", core.ErrUnsupportedMethod, r.Method))
}

// readBody reads the request body up to the configured limit.
func (s *Server) readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, s.cfg.Server.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: body exceeds %d bytes", core.ErrInvalidPayload, tooLarge.Limit)
		}
		return nil, fmt.Errorf("%w: read body: %v", core.ErrInvalidPayload, err)
	}
	return body, nil
}

func sheetAndID(sheetSeg, idSeg string) (int, int, error) {
	sheet, err := core.SheetIndexArg(sheetSeg)
	if err != nil {
		return 0, 0, err
	}
	id, err := core.RowIDArg(idSeg)
	if err != nil {
		return 0, 0, err
	}
	return sheet, id, nil
}

// pageParams reads the optional limit and offset query parameters.
func pageParams(r *http.Request) (core.Page, error) {
	var page core.Page
	q := r.URL.Query()
	for name, dst := range map[string]*int{"limit": &page.Limit, "offset": &page.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return core.Page{}, fmt.Errorf("%w: %s must be a non-negative integer", core.ErrMalformedRequest, name)
		}
		*dst = n
	}
	return page, nil
}
