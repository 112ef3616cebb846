package utils

import (
	"fmt"
	"time"
)

// GenerateConnectionString собирает строку подключения к PostgreSQL
// из параметров конфигурации с их валидацией
func GenerateConnectionString(
	host, user, password, dbName, sslMode string,
	port, poolSize int,
	timeout time.Duration,
) (string, error) {
	switch {
	case host == "":
		return "", ErrStorageEmptyHostName
	case port < 0 || port > 65535:
		return "", ErrStorageInvalidPortNumber
	case user == "":
		return "", ErrStorageEmptyUsername
	case password == "":
		return "", ErrStorageEmptyPassword
	case dbName == "":
		return "", ErrStorageInvalidDatabaseName
	case sslMode == "":
		return "", ErrStorageInvalidSslMode
	case poolSize < 0:
		return "", ErrStorageInvalidPoolSize
	case timeout < 0:
		return "", ErrStorageInvalidTimeout
	}

	conStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		host, port, user, password, dbName, sslMode, poolSize)

	if timeout > 0 {
		conStr += fmt.Sprintf(" connect_timeout=%d", int(timeout.Seconds()))
	}

	return conStr, nil
}
