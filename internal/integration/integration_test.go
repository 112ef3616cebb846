package integration

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/athebyme/admanager-platform/integration-service/internal/coreclient"
	"github.com/athebyme/admanager-platform/integration-service/pkg/interfaces"
	"github.com/stretchr/testify/require"
)

// newCoreServer поднимает тестовый сервер ядровой платформы и возвращает
// клиент, настроенный на него без повторов
func newCoreServer(t *testing.T, handler http.Handler) (*httptest.Server, *coreclient.Client) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	profile, err := coreclient.NewConnectionProfile(
		server.URL,
		2*time.Second,
		0,
		time.Millisecond,
		coreclient.Endpoints{
			Products:  "/api/products",
			Auth:      "/api/auth/verify",
			Customers: "/api/customers/%s",
			Orders:    "/api/orders/attributed",
			Status:    "/api/status",
		},
	)
	require.NoError(t, err)

	return server, coreclient.NewClient(profile, nil, interfaces.NopLogger{})
}
