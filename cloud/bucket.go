/*
Copyright © 2026 the iRadar authors.
This file is part of iRadar.

iRadar is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

iRadar is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with iRadar.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package cloud opens and uses the S3-compatible object store the
// pipeline publishes to. A nil *blob.Bucket uniformly means
// local-only mode.
package cloud

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/s3blob"
)

// SpacesConfig holds the DigitalOcean Spaces connection settings.
type SpacesConfig struct {
	Key      string
	Secret   string
	Endpoint string
	Region   string
	Bucket   string
	// URL is the public base URL of the bucket, used only for
	// log messages.
	URL string
}

// ConfigFromEnv reads the DIGITALOCEAN_SPACES_* environment
// variables. It returns nil when no credentials are configured,
// which selects local-only mode.
func ConfigFromEnv() *SpacesConfig {
	c := &SpacesConfig{
		Key:      os.Getenv("DIGITALOCEAN_SPACES_KEY"),
		Secret:   os.Getenv("DIGITALOCEAN_SPACES_SECRET"),
		Endpoint: os.Getenv("DIGITALOCEAN_SPACES_ENDPOINT"),
		Region:   os.Getenv("DIGITALOCEAN_SPACES_REGION"),
		Bucket:   os.Getenv("DIGITALOCEAN_SPACES_BUCKET"),
		URL:      os.Getenv("DIGITALOCEAN_SPACES_URL"),
	}
	if c.Key == "" || c.Secret == "" || c.Bucket == "" {
		return nil
	}
	if c.Region == "" {
		c.Region = "ams3"
	}
	if c.Endpoint == "" {
		c.Endpoint = fmt.Sprintf("https://%s.digitaloceanspaces.com", c.Region)
	}
	return c
}

// OpenBucket opens the configured Spaces bucket. A nil config
// returns a nil bucket without error.
func OpenBucket(ctx context.Context, c *SpacesConfig) (*blob.Bucket, error) {
	if c == nil {
		return nil, nil
	}
	awsConfig := &aws.Config{
		Region:      aws.String(c.Region),
		Endpoint:    aws.String(c.Endpoint),
		Credentials: credentials.NewStaticCredentials(c.Key, c.Secret, ""),
	}
	s := session.Must(session.NewSession(awsConfig))
	bucket, err := s3blob.OpenBucket(ctx, s, c.Bucket, nil)
	if err != nil {
		return nil, fmt.Errorf("cloud: opening bucket %s: %v", c.Bucket, err)
	}
	return bucket, nil
}

// OpenBucketURL opens a bucket from a URL of the form
// file://dir (testing and local mirrors) or s3://name.
func OpenBucketURL(ctx context.Context, bucketURL string) (*blob.Bucket, error) {
	u, err := url.Parse(bucketURL)
	if err != nil {
		return nil, fmt.Errorf("cloud: parsing bucket URL %s: %v", bucketURL, err)
	}
	switch u.Scheme {
	case "file":
		return fileblob.OpenBucket(u.Hostname()+u.Path, nil)
	case "s3":
		c := ConfigFromEnv()
		if c == nil {
			return nil, fmt.Errorf("cloud: bucket %s requested but no credentials configured", bucketURL)
		}
		c.Bucket = u.Hostname()
		return OpenBucket(ctx, c)
	default:
		return nil, fmt.Errorf("cloud: invalid bucket provider %s", u.Scheme)
	}
}
