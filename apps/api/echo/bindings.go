package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/evaluo/core"
)

const (
	contextObjectKey = "object"
	orderingParam    = "ordering"
	idsParam         = "id"
)

func pathID(ctx echo.Context) (int, error) {
	return strconv.Atoi(ctx.Param("id"))
}

func queryOrdering(ctx echo.Context) []core.DBOrdering {
	return core.ParseOrdering(ctx.QueryParam(orderingParam))
}

// queryIDs parses the repeated `?id=` params of bulk requests.
func queryIDs(ctx echo.Context) ([]int, error) {
	vals := ctx.QueryParams()[idsParam]
	ids := make([]int, 0, len(vals))
	for _, val := range vals {
		id, err := strconv.Atoi(val)
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id: "+val)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// queryBool returns nil when `name` is absent.
func queryBool(ctx echo.Context, name string) (*bool, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name+": "+val)
	}
	return &b, nil
}

// queryTime parses an RFC 3339 time; the zero time is returned when `name` is absent.
func queryTime(ctx echo.Context, name string) (time.Time, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name+": "+val)
	}
	return t.UTC(), nil
}
