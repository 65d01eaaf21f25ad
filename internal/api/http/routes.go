package httpapi

import (
	"bytes"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/dpoulos/hellas-grid-monitor/internal/dashboard"
	"github.com/dpoulos/hellas-grid-monitor/internal/grid"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, builder *dashboard.Builder) {
	v1 := app.Group("/api/v1")

	v1.Get("/dashboard", func(c *fiber.Ctx) error {
		start, end, err := parseRangeQuery(c, builder.Resolver())
		if err != nil {
			return err
		}

		d, err := builder.Build(c.UserContext(), start, end)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(d)
	})

	v1.Get("/generation", func(c *fiber.Ctx) error {
		r, err := resolveRange(c, builder.Resolver())
		if err != nil {
			return err
		}
		return c.JSON(builder.Generation(c.UserContext(), r))
	})

	v1.Get("/load", func(c *fiber.Ctx) error {
		r, err := resolveRange(c, builder.Resolver())
		if err != nil {
			return err
		}
		return c.JSON(builder.Load(c.UserContext(), r))
	})

	v1.Get("/prices", func(c *fiber.Ctx) error {
		r, err := resolveRange(c, builder.Resolver())
		if err != nil {
			return err
		}
		return c.JSON(builder.Price(c.UserContext(), r))
	})

	v1.Get("/forecast/generation", func(c *fiber.Ctx) error {
		return c.JSON(builder.Forecast(c.UserContext()).Generation)
	})

	v1.Get("/forecast/load", func(c *fiber.Ctx) error {
		return c.JSON(builder.Forecast(c.UserContext()).Load)
	})

	v1.Get("/plants", func(c *fiber.Ctx) error {
		return c.JSON(builder.Plants(c.UserContext()))
	})

	v1.Get("/export/generation.csv", func(c *fiber.Ctx) error {
		start, end, err := parseRangeQuery(c, builder.Resolver())
		if err != nil {
			return err
		}

		set, r, err := builder.GenerationSet(c.UserContext(), start, end)
		if err != nil {
			return toHTTPError(err)
		}

		var buf bytes.Buffer
		if err := grid.ExportCSV(&buf, set, r.Location); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to export generation data")
		}

		c.Attachment(grid.ExportFilename(start, end))
		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
		return c.Send(buf.Bytes())
	})

	v1.Post("/refresh", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"cleared": builder.Refresh(),
		})
	})
}

// rangeQuery holds the date selection query parameters.
type rangeQuery struct {
	Start string `validate:"omitempty,datetime=2006-01-02"`
	End   string `validate:"omitempty,datetime=2006-01-02"`
}

// parseRangeQuery reads start/end dates, defaulting to yesterday..today.
func parseRangeQuery(c *fiber.Ctx, resolver *grid.Resolver) (grid.Date, grid.Date, error) {
	q := rangeQuery{
		Start: c.Query("start"),
		End:   c.Query("end"),
	}
	if err := validate.Struct(q); err != nil {
		return grid.Date{}, grid.Date{}, fiber.NewError(fiber.StatusBadRequest, "start and end must be dates in YYYY-MM-DD format")
	}

	start, end := resolver.DefaultSelection()
	var err error
	if q.Start != "" {
		if start, err = grid.ParseDate(q.Start); err != nil {
			return grid.Date{}, grid.Date{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}
	if q.End != "" {
		if end, err = grid.ParseDate(q.End); err != nil {
			return grid.Date{}, grid.Date{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}
	return start, end, nil
}

func resolveRange(c *fiber.Ctx, resolver *grid.Resolver) (grid.TimeRange, error) {
	start, end, err := parseRangeQuery(c, resolver)
	if err != nil {
		return grid.TimeRange{}, err
	}
	r, err := resolver.ResolveSelection(start, end)
	if err != nil {
		return grid.TimeRange{}, toHTTPError(err)
	}
	return r, nil
}

// toHTTPError maps pipeline errors onto HTTP status codes.
func toHTTPError(err error) error {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe
	case grid.IsInvalidRange(err):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case grid.IsProviderUnavailable(err):
		return fiber.NewError(fiber.StatusServiceUnavailable, "data provider unavailable")
	case grid.IsProviderData(err):
		return fiber.NewError(fiber.StatusBadGateway, "no data available for the selected date range")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
