package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"

	"space-planner/internal/common/errors"
	"space-planner/internal/planner/geometry"
	"space-planner/internal/planner/importer"
	"space-planner/internal/planner/interaction"
	"space-planner/internal/planner/persistence"
	"space-planner/internal/planner/render"
	"space-planner/internal/planner/scene"
	"space-planner/internal/planner/shapes"
	"space-planner/internal/planner/workspace"
)

// ============================================================
// Planner Handler
// ============================================================

type PlannerHandler struct {
	ws      *workspace.Workspace
	log     *log.Logger
	timeout time.Duration
}

func NewPlannerHandler(ws *workspace.Workspace, logger *log.Logger) *PlannerHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &PlannerHandler{ws: ws, log: logger, timeout: 10 * time.Second}
}

// Register вешает маршруты редактора на router.
func (h *PlannerHandler) Register(r fiber.Router) {
	r.Get("/symbols", h.ListSymbols)

	r.Get("/documents", h.ListDocuments)
	r.Delete("/documents/:id", h.DeleteDocument)

	r.Get("/documents/:id/shapes", h.GetShapes)
	r.Post("/documents/:id/shapes", h.CreateShape)
	r.Patch("/documents/:id/shapes/:shapeId", h.UpdateShape)
	r.Delete("/documents/:id/shapes/:shapeId", h.DeleteShape)
	r.Post("/documents/:id/shapes/:shapeId/front", h.BringToFront)
	r.Post("/documents/:id/shapes/:shapeId/back", h.SendToBack)

	r.Put("/documents/:id/selection", h.SetSelection)
	r.Post("/documents/:id/events", h.DispatchEvents)

	r.Get("/documents/:id/render", h.Render)
	r.Get("/documents/:id/svg", h.ExportSVG)
	r.Post("/documents/:id/import", h.ImportSVG)

	r.Post("/documents/:id/save", h.Save)
	r.Post("/documents/:id/undo", h.Undo)
	r.Post("/documents/:id/redo", h.Redo)
}

func (h *PlannerHandler) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), h.timeout)
}

// fail отдаёт ошибку в формате {"error", "code"} со статусом по коду.
func (h *PlannerHandler) fail(c fiber.Ctx, tag string, err error) error {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Errorf("[%s] %s %s: %v", tag, c.Method(), c.Path(), err)
	} else {
		h.log.Warnf("[%s] %s %s: %v", tag, c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{
		"error": errors.UserMessage(err),
		"code":  errors.GetCode(err),
	})
}

func (h *PlannerHandler) document(c fiber.Ctx) (*workspace.Document, error) {
	ctx, cancel := h.context()
	defer cancel()
	return h.ws.Open(ctx, c.Params("id"))
}

// cancelGesture сбрасывает незавершённый drag/transform перед правкой по HTTP,
// иначе pointer-up закоммитит сессию поверх этой правки.
func cancelGesture(d *workspace.Document) {
	_ = d.Controller.Dispatch(interaction.Event{Type: interaction.EventCancel})
}

func decodeBody(c fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return errors.Validation("empty body")
	}
	if err := json.Unmarshal(c.Body(), v); err != nil {
		return errors.Wrap(errors.CodeValidation, err, "invalid json")
	}
	return nil
}

// ============================================================
// Documents
// ============================================================

type sceneResponse struct {
	ID        string         `json:"id"`
	Revision  uint64         `json:"revision"`
	Shapes    []shapes.Shape `json:"shapes"`
	Selection []string       `json:"selection"`
	CanUndo   bool           `json:"canUndo"`
	CanRedo   bool           `json:"canRedo"`
}

func sceneOf(d *workspace.Document) sceneResponse {
	snap := d.Store.Snapshot()
	if snap.Selection == nil {
		snap.Selection = []string{}
	}
	return sceneResponse{
		ID:        d.ID,
		Revision:  snap.Revision,
		Shapes:    snap.Shapes,
		Selection: snap.Selection,
		CanUndo:   d.Store.CanUndo(),
		CanRedo:   d.Store.CanRedo(),
	}
}

func (h *PlannerHandler) ListSymbols(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"symbols": h.ws.Catalog().List()})
}

func (h *PlannerHandler) ListDocuments(c fiber.Ctx) error {
	ctx, cancel := h.context()
	defer cancel()

	infos, err := h.ws.Bridge().List(ctx)
	if err != nil {
		return h.fail(c, "DOCUMENTS", err)
	}
	if infos == nil {
		infos = []persistence.DocumentInfo{}
	}
	return c.JSON(fiber.Map{"documents": infos, "open": h.ws.IDs()})
}

func (h *PlannerHandler) DeleteDocument(c fiber.Ctx) error {
	ctx, cancel := h.context()
	defer cancel()

	if err := h.ws.Delete(ctx, c.Params("id")); err != nil {
		return h.fail(c, "DOCUMENTS", err)
	}
	h.log.Printf("[DOCUMENTS] Deleted %s", c.Params("id"))
	return c.SendStatus(http.StatusNoContent)
}

// ============================================================
// Shapes
// ============================================================

// shapeRequest: тело POST/PATCH, тип и координаты вместе с атрибутами на верхнем уровне.
type shapeRequest struct {
	Type        shapes.Kind     `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
	shapes.Attrs
}

func (h *PlannerHandler) GetShapes(c fiber.Ctx) error {
	d, err := h.document(c)
	if err != nil {
		return h.fail(c, "SHAPES", err)
	}
	var resp sceneResponse
	_ = d.Do(func(d *workspace.Document) error {
		resp = sceneOf(d)
		return nil
	})
	return c.JSON(resp)
}

func (h *PlannerHandler) CreateShape(c fiber.Ctx) error {
	d, err := h.document(c)
	if err != nil {
		return h.fail(c, "SHAPES", err)
	}

	var req shapeRequest
	if err := decodeBody(c, &req); err != nil {
		return h.fail(c, "SHAPES", err)
	}
	if _, err := shapes.Lookup(req.Type); err != nil {
		return h.fail(c, "SHAPES", err)
	}
	coords, err := shapes.ParseCoordinates(req.Type, req.Coordinates)
	if err != nil {
		return h.fail(c, "SHAPES", err)
	}

	var created shapes.Shape
	err = d.Do(func(d *workspace.Document) error {
		cancelGesture(d)
		id, err := d.Store.AddShape(req.Type, coords, req.Attrs)
		if err != nil {
			return err
		}
		created, _ = d.Store.Get(id)
		return nil
	})
	if err != nil {
		return h.fail(c, "SHAPES", err)
	}

	h.log.Printf("[SHAPES] Created %s %s in %s", created.Type, created.ID, d.ID)
	return c.Status(http.StatusCreated).JSON(fiber.Map{"id": created.ID, "shape": created})
}

// UpdateShape принимает частичные координаты и/или атрибуты; всё применяется
// одним шагом undo.
func (h *PlannerHandler) UpdateShape(c fiber.Ctx) error {
	d, err := h.document(c)
	if err != nil {
		return h.fail(c, "SHAPES", err)
	}

	var req shapeRequest
	if err := decodeBody(c, &req); err != nil {
		return h.fail(c, "SHAPES", err)
	}
	hasCoords := len(req.Coordinates) > 0 && string(req.Coordinates) != "null"
	if !hasCoords && req.Attrs.Empty() {
		return h.fail(c, "SHAPES", errors.Validation("nothing to update"))
	}

	shapeID := c.Params("shapeId")
	var updated shapes.Shape
	err = d.Do(func(d *workspace.Document) error {
		cancelGesture(d)
		current, ok := d.Store.Get(shapeID)
		if !ok {
			return errors.NotFound("shape %s", shapeID)
		}
		if req.Type != "" && req.Type != current.Type {
			return errors.Validation("shape %s is %s, type cannot change", shapeID, current.Type)
		}

		err := d.Store.Group(func() error {
			if hasCoords {
				merged, err := shapes.MergeCoordinates(current.Type, current.Coordinates, req.Coordinates)
				if err != nil {
					return err
				}
				if err := d.Store.UpdateShape(shapeID, merged); err != nil {
					return err
				}
			}
			if !req.Attrs.Empty() {
				return d.Store.UpdateAttrs(shapeID, req.Attrs)
			}
			return nil
		})
		if err != nil {
			return err
		}
		updated, _ = d.Store.Get(shapeID)
		return nil
	})
	if err != nil {
		return h.fail(c, "SHAPES", err)
	}
	return c.JSON(updated)
}

func (h *PlannerHandler) DeleteShape(c fiber.Ctx) error {
	return h.shapeOp(c, func(s *scene.Store, id string) error { return s.RemoveShape(id) }, http.StatusNoContent)
}

func (h *PlannerHandler) BringToFront(c fiber.Ctx) error {
	return h.shapeOp(c, func(s *scene.Store, id string) error { return s.BringToFront(id) }, http.StatusOK)
}

func (h *PlannerHandler) SendToBack(c fiber.Ctx) error {
	return h.shapeOp(c, func(s *scene.Store, id string) error { return s.SendToBack(id) }, http.StatusOK)
}

func (h *PlannerHandler) shapeOp(c fiber.Ctx, op func(s *scene.Store, id string) error, status int) error {
	d, err := h.document(c)
	if err != nil {
		return h.fail(c, "SHAPES", err)
	}

	var resp sceneResponse
	err = d.Do(func(d *workspace.Document) error {
		cancelGesture(d)
		if err := op(d.Store, c.Params("shapeId")); err != nil {
			return err
		}
		resp = sceneOf(d)
		return nil
	})
	if err != nil {
		return h.fail(c, "SHAPES", err)
	}
	if status == http.StatusNoContent {
		return c.SendStatus(status)
	}
	return c.Status(status).JSON(resp)
}

// ============================================================
// Selection & Events
// ============================================================

type selectionRequest struct {
	IDs  []string `json:"ids"`
	Mode string   `json:"mode"`
}

func (h *PlannerHandler) SetSelection(c fiber.Ctx) error {
	d, err := h.document(c)
	if err != nil {
		return h.fail(c, "SELECTION", err)
	}

	var req selectionRequest
	if err := decodeBody(c, &req); err != nil {
		return h.fail(c, "SELECTION", err)
	}
	mode, err := scene.ParseSelectMode(req.Mode)
	if err != nil {
		return h.fail(c, "SELECTION", err)
	}

	var selection []string
	_ = d.Do(func(d *workspace.Document) error {
		cancelGesture(d)
		d.Store.Select(req.IDs, mode)
		selection = d.Store.Selection()
		return nil
	})
	if selection == nil {
		selection = []string{}
	}
	return c.JSON(fiber.Map{"selection": selection})
}

type eventsRequest struct {
	Events []interaction.Event `json:"events"`
}

type eventsResponse struct {
	Applied  int              `json:"applied"`
	Revision uint64           `json:"revision"`
	View     interaction.View `json:"view"`
}

// DispatchEvents прогоняет пачку событий через контроллер по порядку.
// Ошибка на событии останавливает пачку; предыдущие события уже применены.
func (h *PlannerHandler) DispatchEvents(c fiber.Ctx) error {
	d, err := h.document(c)
	if err != nil {
		return h.fail(c, "EVENTS", err)
	}

	var req eventsRequest
	if err := decodeBody(c, &req); err != nil {
		return h.fail(c, "EVENTS", err)
	}

	var (
		resp   eventsResponse
		failed error
	)
	_ = d.Do(func(d *workspace.Document) error {
		for i, ev := range req.Events {
			if err := d.Controller.Dispatch(ev); err != nil {
				failed = errors.Wrap(errors.GetCode(err), err, "event %d (%s): %s", i, ev.Type, errors.UserMessage(err))
				break
			}
			resp.Applied++
		}
		resp.Revision = d.Store.Revision()
		resp.View = d.Controller.View()
		return nil
	})
	if failed != nil {
		return h.fail(c, "EVENTS", failed)
	}
	return c.JSON(resp)
}

// ============================================================
// Render, Export & Import
// ============================================================

type renderResponse struct {
	Revision   uint64             `json:"revision"`
	Primitives []render.Primitive `json:"primitives"`
	Bounds     *geometry.Rect     `json:"bounds,omitempty"`
	View       interaction.View   `json:"view"`
}

func (h *PlannerHandler) Render(c fiber.Ctx) error {
	d, err := h.document(c)
	if err != nil {
		return h.fail(c, "RENDER", err)
	}

	var resp renderResponse
	_ = d.Do(func(d *workspace.Document) error {
		resp.Revision = d.Store.Revision()
		resp.Primitives = d.Canvas.Primitives()
		if resp.Primitives == nil {
			resp.Primitives = []render.Primitive{}
		}
		if b, ok := d.Canvas.Bounds(); ok {
			resp.Bounds = &b
		}
		resp.View = d.Controller.View()
		return nil
	})
	return c.JSON(resp)
}

// ExportSVG отдаёт текущую сцену как SVG.
func (h *PlannerHandler) ExportSVG(c fiber.Ctx) error {
	d, err := h.document(c)
	if err != nil {
		return h.fail(c, "RENDER", err)
	}

	var buf bytes.Buffer
	err = d.Do(func(d *workspace.Document) error {
		bounds, _ := d.Canvas.Bounds()
		return render.ExportSVG(&buf, d.Canvas.Primitives(), bounds)
	})
	if err != nil {
		return h.fail(c, "RENDER", errors.Wrap(errors.CodeInternal, err, "export svg"))
	}

	c.Set("Content-Type", "image/svg+xml")
	return c.SendString(buf.String())
}

// ImportSVG добавляет фигуры из загруженного SVG плана одним шагом undo.
func (h *PlannerHandler) ImportSVG(c fiber.Ctx) error {
	h.log.Printf("[IMPORT] Received request, Content-Type: %s", c.Get("Content-Type"))

	d, err := h.document(c)
	if err != nil {
		return h.fail(c, "IMPORT", err)
	}

	// Получаем файл из multipart/form-data
	file, err := c.FormFile("file")
	if err != nil {
		return h.fail(c, "IMPORT", errors.Validation("file required in multipart/form-data"))
	}
	h.log.Printf("[IMPORT] File received: %s, size: %d", file.Filename, file.Size)

	f, err := file.Open()
	if err != nil {
		return h.fail(c, "IMPORT", errors.Wrap(errors.CodeInternal, err, "failed to open file"))
	}
	defer f.Close()

	res, err := importer.Parse(f, importer.WithLogger(h.log))
	if err != nil {
		return h.fail(c, "IMPORT", err)
	}

	var ids []string
	err = d.Do(func(d *workspace.Document) error {
		cancelGesture(d)
		if len(res.Elements) == 0 {
			return nil
		}
		ids, err = d.Store.AddShapes(res.Shapes())
		return err
	})
	if err != nil {
		return h.fail(c, "IMPORT", err)
	}
	if ids == nil {
		ids = []string{}
	}
	skipped := res.Skipped
	if skipped == nil {
		skipped = []importer.Skipped{}
	}

	h.log.Printf("[IMPORT] Imported %d shapes into %s, skipped %d", len(ids), d.ID, len(skipped))
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"ids":     ids,
		"skipped": skipped,
	})
}

// ============================================================
// Save & History
// ============================================================

func (h *PlannerHandler) Save(c fiber.Ctx) error {
	d, err := h.document(c)
	if err != nil {
		return h.fail(c, "SAVE", err)
	}

	ctx, cancel := h.context()
	defer cancel()
	if err := d.Autosaver.Flush(ctx); err != nil {
		return h.fail(c, "SAVE", err)
	}
	return c.JSON(d.Autosaver.Stats())
}

func (h *PlannerHandler) Undo(c fiber.Ctx) error {
	return h.history(c, (*scene.Store).Undo)
}

func (h *PlannerHandler) Redo(c fiber.Ctx) error {
	return h.history(c, (*scene.Store).Redo)
}

func (h *PlannerHandler) history(c fiber.Ctx, step func(*scene.Store) bool) error {
	d, err := h.document(c)
	if err != nil {
		return h.fail(c, "HISTORY", err)
	}

	var (
		applied bool
		resp    sceneResponse
	)
	_ = d.Do(func(d *workspace.Document) error {
		cancelGesture(d)
		applied = step(d.Store)
		resp = sceneOf(d)
		return nil
	})
	return c.JSON(fiber.Map{"applied": applied, "scene": resp})
}
