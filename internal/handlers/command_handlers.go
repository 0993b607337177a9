package handlers

import (
	"net/http"

	"categorybot/internal/bot"
	"categorybot/internal/common"

	"github.com/labstack/echo/v4"
)

// CommandHandlers runs chat commands sent over HTTP
type CommandHandlers struct {
	router *bot.Router
}

func NewCommandHandlers(router *bot.Router) *CommandHandlers {
	return &CommandHandlers{router: router}
}

// CommandRequest carries one command line, e.g. "/addElement A B"
type CommandRequest struct {
	Text string `json:"text"`
}

// CommandResponse is the reply the chat user would have seen
type CommandResponse struct {
	Response string `json:"response"`
}

// ExecuteCommand dispatches text through the command router. Commands that
// reply with a file are refused; use the export endpoint instead.
//
//	@Summary	Run a chat command
//	@Tags		commands
//	@Accept		json
//	@Produce	json
//	@Param		request	body		CommandRequest	true	"Command"
//	@Success	200		{object}	CommandResponse
//	@Failure	400		{object}	common.ErrorResponse
//	@Router		/v1/commands [post]
func (h *CommandHandlers) ExecuteCommand(c echo.Context) error {
	var req CommandRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := common.ValidateRequiredString(req.Text, "text"); err != nil {
		return common.SendValidationError(c, "text", err.Error())
	}

	reply := h.router.Handle(c.Request().Context(), bot.NewMessage(0, req.Text))
	return c.JSON(http.StatusOK, CommandResponse{Response: reply.Text})
}
