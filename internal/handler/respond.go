package handler

import (
    "github.com/labstack/echo/v4"
)

// Every endpoint answers with the same envelope: a success flag, a data
// payload on success, and a message (plus optional field errors) on failure.

type envelope struct {
    Success bool     `json:"success"`
    Data    any      `json:"data,omitempty"`
    Message string   `json:"message,omitempty"`
    Errors  []string `json:"errors,omitempty"`
}

func ok(c echo.Context, status int, data any) error {
    return c.JSON(status, envelope{Success: true, Data: data})
}

func okMsg(c echo.Context, status int, data any, message string) error {
    return c.JSON(status, envelope{Success: true, Data: data, Message: message})
}

func fail(c echo.Context, status int, message string) error {
    return c.JSON(status, envelope{Success: false, Message: message})
}

func failFields(c echo.Context, status int, message string, fieldErrors []string) error {
    return c.JSON(status, envelope{Success: false, Message: message, Errors: fieldErrors})
}
