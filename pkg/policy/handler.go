package policy

import (
	"github.com/gofiber/fiber/v2"
)

// Handler serves the wire contract over fiber using any Client.
//
//	api.Post("/policy/next", policy.Handler(llm))
func Handler(client Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req Request
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(newWireError(KindInvalidInput, "malformed request body"))
		}

		utterance, err := client.NextUtterance(c.UserContext(), req.Context, req.History, req.Input)
		if err != nil {
			kind := KindOf(err)
			status := fiber.StatusServiceUnavailable
			if kind == KindInvalidInput {
				status = fiber.StatusBadRequest
			}
			return c.Status(status).JSON(newWireError(kind, err.Error()))
		}

		return c.JSON(Response{
			Utterance: utterance,
			Stage:     StageFor(req.History),
			ShouldEnd: ShouldEnd(req.History),
		})
	}
}
