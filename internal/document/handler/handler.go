package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gogotex/docstore/internal/document"
	"github.com/gogotex/docstore/internal/document/service"
	"github.com/gogotex/docstore/pkg/logger"
)

// BasePath is the prefix of every document route.
const BasePath = "/api/v1/documents"

type listResponse struct {
	Items []document.Document `json:"items"`
}

type clearResponse struct {
	ItemsDeleted int `json:"items_deleted"`
}

// RegisterDocumentRoutes mounts the document API on r.
func RegisterDocumentRoutes(r gin.IRouter, svc service.Service) {
	g := r.Group(BasePath)

	g.POST("/create", func(c *gin.Context) {
		fields, err := parseBody(c)
		if err != nil {
			writeError(c, err)
			return
		}
		var in document.Input
		for _, f := range []struct {
			key string
			dst *string
		}{
			{"name", &in.Name},
			{"owner", &in.Owner},
			{"namespace", &in.Namespace},
		} {
			v, err := requiredString(fields, f.key)
			if err != nil {
				writeError(c, err)
				return
			}
			*f.dst = v
		}
		payload, err := requiredString(fields, "payload")
		if err != nil {
			writeError(c, err)
			return
		}
		in.Payload = &payload

		d, err := svc.Create(c.Request.Context(), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	})

	g.GET("/get", func(c *gin.Context) {
		id, err := queryID(c)
		if err != nil {
			writeError(c, err)
			return
		}
		d, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	})

	g.GET("/list", func(c *gin.Context) {
		list, err := svc.List(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, listResponse{Items: list})
	})

	g.POST("/update", func(c *gin.Context) {
		fields, err := parseBody(c)
		if err != nil {
			writeError(c, err)
			return
		}
		id, err := bodyID(fields)
		if err != nil {
			writeError(c, err)
			return
		}
		var p document.Patch
		for _, f := range []struct {
			key string
			dst **string
		}{
			{"name", &p.Name},
			{"owner", &p.Owner},
			{"namespace", &p.Namespace},
			{"payload", &p.Payload},
		} {
			v, err := optionalString(fields, f.key)
			if err != nil {
				writeError(c, err)
				return
			}
			*f.dst = v
		}

		d, err := svc.Update(c.Request.Context(), id, p)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	})

	g.POST("/delete", func(c *gin.Context) {
		fields, err := parseBody(c)
		if err != nil {
			writeError(c, err)
			return
		}
		id, err := bodyID(fields)
		if err != nil {
			writeError(c, err)
			return
		}
		d, err := svc.Delete(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	})

	g.POST("/clear", func(c *gin.Context) {
		n, err := svc.Clear(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, clearResponse{ItemsDeleted: n})
	})
}

// parseBody decodes a JSON object body into its raw members so callers can
// tell absent keys from null or mistyped ones.
func parseBody(c *gin.Context) (map[string]json.RawMessage, error) {
	raw, err := c.GetRawData()
	if err != nil {
		return nil, document.NewValidationError("", "Cannot read request body")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, document.NewValidationError("", "Request body must be a JSON object")
	}
	return fields, nil
}

func requiredString(fields map[string]json.RawMessage, key string) (string, error) {
	v, err := optionalString(fields, key)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", &document.ValidationError{Field: key}
	}
	return *v, nil
}

func optionalString(fields map[string]json.RawMessage, key string) (*string, error) {
	raw, ok := fields[key]
	if !ok {
		return nil, nil
	}
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil || s == nil {
		return nil, document.NewValidationError(key, fmt.Sprintf("Key '%s' must be a string.", key))
	}
	return s, nil
}

func bodyID(fields map[string]json.RawMessage) (uint64, error) {
	raw, ok := fields["id"]
	if !ok {
		return 0, document.NewValidationError("id", "Key 'id' is required.")
	}
	var id *uint64
	if err := json.Unmarshal(raw, &id); err != nil || id == nil {
		return 0, document.NewValidationError("id", "Key 'id' is invalid.")
	}
	return *id, nil
}

func queryID(c *gin.Context) (uint64, error) {
	s, ok := c.GetQuery("id")
	if !ok {
		return 0, document.NewValidationError("id", "Parameter 'id' not found")
	}
	if strings.HasPrefix(s, "-") {
		return 0, document.NewValidationError("id", "Parameter 'id' is invalid")
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, document.NewValidationError("id", "Parameter 'id' is invalid")
	}
	return id, nil
}

// writeError maps store errors to plain-text responses.
func writeError(c *gin.Context, err error) {
	var verr *document.ValidationError
	switch {
	case errors.As(err, &verr):
		c.String(http.StatusBadRequest, verr.Error())
	case document.IsNotFound(err):
		c.String(http.StatusNotFound, err.Error())
	default:
		logger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.String(http.StatusInternalServerError, "internal storage error")
	}
}
