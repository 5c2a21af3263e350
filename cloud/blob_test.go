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

package cloud

import (
	"bytes"
	"context"
	"reflect"
	"testing"

	"gocloud.dev/blob/fileblob"
)

func TestBlobRoundtrip(t *testing.T) {
	ctx := context.Background()
	bucket, err := fileblob.OpenBucket(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	key := PNGKey("composite", 1769601600)
	want := []byte{0x89, 'P', 'N', 'G'}
	if err := WriteBlob(ctx, bucket, key, want); err != nil {
		t.Fatal(err)
	}
	ok, err := BlobExists(ctx, bucket, key)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("blob should exist after write")
	}
	have, err := ReadBlob(ctx, bucket, key)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(have, want) {
		t.Errorf("want %v but have %v", want, have)
	}

	if err := DeleteBlob(ctx, bucket, key); err != nil {
		t.Fatal(err)
	}
	ok, err = BlobExists(ctx, bucket, key)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("blob should not exist after delete")
	}
}

func TestListKeys(t *testing.T) {
	ctx := context.Background()
	bucket, err := fileblob.OpenBucket(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	keys := []string{
		DataKey("arso", "zmax", "202601281200", "npz"),
		DataKey("arso", "zmax", "202601281200", "json"),
		DataKey("dwd", "wn", "202601281200", "npz"),
	}
	for _, k := range keys {
		if err := WriteBlob(ctx, bucket, k, []byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	have, err := ListKeys(ctx, bucket, DataSourcePrefix("arso"))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{keys[1], keys[0]} // lexicographic: .json before .npz
	if !reflect.DeepEqual(have, want) {
		t.Errorf("want %v but have %v", want, have)
	}
}

func TestConfigFromEnvMissing(t *testing.T) {
	t.Setenv("DIGITALOCEAN_SPACES_KEY", "")
	t.Setenv("DIGITALOCEAN_SPACES_SECRET", "")
	t.Setenv("DIGITALOCEAN_SPACES_BUCKET", "")
	if c := ConfigFromEnv(); c != nil {
		t.Errorf("want nil config without credentials but have %+v", c)
	}
}

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("DIGITALOCEAN_SPACES_KEY", "k")
	t.Setenv("DIGITALOCEAN_SPACES_SECRET", "s")
	t.Setenv("DIGITALOCEAN_SPACES_BUCKET", "iradar")
	t.Setenv("DIGITALOCEAN_SPACES_REGION", "")
	t.Setenv("DIGITALOCEAN_SPACES_ENDPOINT", "")
	c := ConfigFromEnv()
	if c == nil {
		t.Fatal("want config but have nil")
	}
	if c.Region != "ams3" {
		t.Errorf("want default region ams3 but have %s", c.Region)
	}
	if c.Endpoint != "https://ams3.digitaloceanspaces.com" {
		t.Errorf("unexpected endpoint %s", c.Endpoint)
	}
}
