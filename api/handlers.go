package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"insight-board/domain"
	"insight-board/insight"
	"insight-board/workflow"
)

const requestBodyMaxSize = 1 << 20

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, sessions Sessions, auth Authenticator, rc *redis.Client, updatesChannel string, logger *log.Logger) {
	e.POST("/api/questions", postQuestion(sessions, auth, logger))
	e.POST("/api/board", seedBoard(sessions, auth))
	e.POST("/api/board/moves", postMove(sessions, auth))
	e.GET("/api/board", getBoard(sessions, auth))
	e.DELETE("/api/board", deleteBoard(sessions, auth))
	e.GET("/api/board/stream", streamBoard(sessions, rc, updatesChannel, auth, logger))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

type questionRequest struct {
	Question string `json:"question"`
}

type moveRequest struct {
	ActiveID string `json:"activeId"`
	OverID   string `json:"overId"`
}

func postQuestion(sessions Sessions, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newQuestionRequestMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		var req questionRequest
		dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, requestBodyMaxSize))
		if decodeErr := dec.Decode(&req); decodeErr != nil {
			metrics.SetErrorStage("invalid_body")
			err = c.String(http.StatusBadRequest, "invalid body")
			return err
		}

		ctrl := sessions.Session(userID)
		generateStart := time.Now()
		state, submitErr := ctrl.Submit(ctx, req.Question)
		metrics.ObserveGenerate(time.Since(generateStart))
		if submitErr != nil {
			switch {
			case errors.Is(submitErr, workflow.ErrEmptyQuestion):
				// Normal empty-gesture case, not a failure.
				err = c.NoContent(http.StatusNoContent)
				return err
			case errors.Is(submitErr, workflow.ErrSubmissionInFlight):
				metrics.SetErrorStage("in_flight")
				err = c.String(http.StatusConflict, submitErr.Error())
				return err
			default:
				metrics.SetErrorStage("generate")
				c.Logger().Error(submitErr)
				err = c.String(http.StatusBadGateway, userMessage(submitErr))
				return err
			}
		}
		metrics.SetCardsProduced(state.CardCount())

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, newBoardResponse(state))
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func seedBoard(sessions Sessions, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var payload domain.RawTaskPayload
		dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, requestBodyMaxSize))
		if err := dec.Decode(&payload); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		state := sessions.Session(userID).AcceptPrecomputed(&payload)
		return c.JSON(http.StatusOK, newBoardResponse(state))
	}
}

func postMove(sessions Sessions, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req moveRequest
		dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, requestBodyMaxSize))
		if err := dec.Decode(&req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		// No-op gestures are normal; they return the unchanged board.
		state, _ := sessions.Session(userID).Move(req.ActiveID, req.OverID)
		return c.JSON(http.StatusOK, newBoardResponse(state))
	}
}

func getBoard(sessions Sessions, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		return c.JSON(http.StatusOK, newBoardResponse(sessions.Session(userID).Board()))
	}
}

func deleteBoard(sessions Sessions, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		sessions.Drop(userID)
		return c.NoContent(http.StatusNoContent)
	}
}

// userMessage selects the most specific human-readable failure message:
// the service-provided detail, else the error text, else a fallback.
func userMessage(err error) string {
	var svcErr *insight.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Error()
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "issue generation failed"
}
