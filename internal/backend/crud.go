package backend

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/njoerd114/agendasync/internal/remote"
)

// crud serves list/get/create/update/delete for one collection.
type crud[W any] struct {
	items *collection[W]
	noun  string
	// prepare, if set, fills server-side defaults before a create.
	prepare func(w W) W
}

func (h crud[W]) register(g *echo.Group) {
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.remove)
}

func (h crud[W]) list(c echo.Context) error {
	return c.JSON(http.StatusOK, h.items.list())
}

func (h crud[W]) get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	w, ok := h.items.get(id)
	if !ok {
		return h.notFound(id)
	}
	return c.JSON(http.StatusOK, w)
}

func (h crud[W]) create(c echo.Context) error {
	w, err := bindValid[W](c)
	if err != nil {
		return err
	}
	if h.prepare != nil {
		w = h.prepare(w)
	}
	return c.JSON(http.StatusCreated, h.items.insert(w))
}

func (h crud[W]) update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	w, err := bindValid[W](c)
	if err != nil {
		return err
	}
	stored, ok := h.items.update(id, func(W) W { return w })
	if !ok {
		return h.notFound(id)
	}
	return c.JSON(http.StatusOK, stored)
}

func (h crud[W]) remove(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if !h.items.remove(id) {
		return h.notFound(id)
	}
	return c.JSON(http.StatusOK, remote.MessageResponse{Success: true, Message: h.noun + " eliminado"})
}

func (h crud[W]) notFound(id int64) error {
	return echo.NewHTTPError(http.StatusNotFound, h.noun+" "+strconv.FormatInt(id, 10)+" no encontrado")
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Identificador inválido")
	}
	return id, nil
}

func bindValid[W any](c echo.Context) (W, error) {
	var w W
	if err := c.Bind(&w); err != nil {
		return w, echo.NewHTTPError(http.StatusBadRequest, "Cuerpo inválido")
	}
	if err := c.Validate(&w); err != nil {
		return w, err
	}
	return w, nil
}
