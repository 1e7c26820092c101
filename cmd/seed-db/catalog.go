package main

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-storefront/internal/domain/auth"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/handler"
)

// openInput opens path, transparently decompressing .gz files.
func openInput(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	zr, err := pgzip.NewReader(bufio.NewReader(f))
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "open gzip stream")
	}
	return &gzipFile{Reader: zr, file: f}, nil
}

type gzipFile struct {
	*pgzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	zerr := g.Reader.Close()
	if err := g.file.Close(); err != nil {
		return err
	}
	return zerr
}

// decodeCatalog streams a JSON array of products. The image may be a plain
// string or an object of renditions, of which the desktop one is preferred.
func decodeCatalog(r io.Reader, fn func(product.Product) error) (int, error) {
	n := 0
	d := jx.Decode(r, 64*1024)
	err := d.Arr(func(d *jx.Decoder) error {
		p, err := decodeProduct(d)
		if err != nil {
			return errors.Wrapf(err, "product #%d", n+1)
		}
		if p.ID == "" {
			return errors.Errorf("product #%d: missing id", n+1)
		}
		n++
		return fn(p)
	})
	return n, err
}

func decodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id", "_id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "category":
			p.Category, err = d.Str()
		case "price":
			var raw jx.Raw
			if raw, err = d.Raw(); err == nil {
				p.Price, err = decimal.NewFromString(strings.Trim(raw.String(), `"`))
			}
		case "image":
			p.Image, err = decodeImage(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return p, err
}

func decodeImage(d *jx.Decoder) (string, error) {
	if d.Next() == jx.String {
		return d.Str()
	}
	renditions := map[string]string{}
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		v, err := d.Str()
		renditions[string(key)] = v
		return err
	})
	for _, k := range []string{"desktop", "tablet", "mobile", "thumbnail"} {
		if v := renditions[k]; v != "" {
			return v, err
		}
	}
	return "", err
}

// parseTokens parses "user=token" pairs into token records hashed with
// pepper.
func parseTokens(pairs []string, pepper []byte) ([]auth.TokenInfo, error) {
	out := make([]auth.TokenInfo, 0, len(pairs))
	for _, pair := range pairs {
		user, token, ok := strings.Cut(pair, "=")
		if !ok || user == "" || token == "" {
			return nil, errors.Errorf("invalid token %q: want user=token", pair)
		}
		out = append(out, auth.TokenInfo{
			ID:        "seed-" + user,
			TokenHash: handler.HashToken(pepper, token),
			UserID:    user,
		})
	}
	return out, nil
}
