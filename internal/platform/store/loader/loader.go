// Package loader registers all store drivers.
package loader

import (
	_ "github.com/MahdiBaghbani/fileshare-go/internal/platform/store/mirror"
	_ "github.com/MahdiBaghbani/fileshare-go/internal/platform/store/sqlite"
)
