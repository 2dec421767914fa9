// Package all registers every storage backend with the storage factory.
// Import it for side effects from binaries that select the backend at
// runtime via config.
package all

import (
	_ "datahub/internal/storage/mssql"
	_ "datahub/internal/storage/postgres"
	_ "datahub/internal/storage/sqlite"
)
