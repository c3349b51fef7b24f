// Package loader registers every blob driver.
package loader

import (
	_ "github.com/MahdiBaghbani/fileshare-go/internal/platform/blob/local"
	_ "github.com/MahdiBaghbani/fileshare-go/internal/platform/blob/s3"
)
