package handlers

import (
	"errors"

	"receipt-service/internal/dto"
	"receipt-service/internal/service"

	"github.com/gofiber/fiber/v2"
)

const (
	errMissingDefaultModel = "Missing defaultModel parameter"
	errMissingKeys         = "Missing geminiKey or gigachatKey parameter, at least 1 key is needed"
)

func credentials(keys dto.APIKeys) service.Credentials {
	keys = keys.Trimmed()
	return service.Credentials{
		DefaultModel: keys.DefaultModel,
		Keys: map[string]string{
			service.ProviderGemini:   keys.GeminiKey,
			service.ProviderGigaChat: keys.GigaChatKey,
		},
	}
}

// validateKeys returns the 400 message for unusable credentials, or "".
func validateKeys(creds service.Credentials) string {
	if creds.DefaultModel == "" {
		return errMissingDefaultModel
	}
	if !creds.Usable() {
		return errMissingKeys
	}
	return ""
}

func errorJSON(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(dto.ErrorResponse{Error: message})
}

// credentialsFailure writes 401 when err is an aggregated key refusal.
func credentialsFailure(c *fiber.Ctx, err error) (bool, error) {
	var credErr *service.CredentialsError
	if errors.As(err, &credErr) {
		return true, errorJSON(c, fiber.StatusUnauthorized, credErr.Error())
	}
	return false, nil
}
