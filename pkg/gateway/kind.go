package gateway

import (
	bitserrors "github.com/marmos91/bitsgate/pkg/errors"
)

// Kind names a resource collection. Each kind is backed by its own blob
// store client.
type Kind string

const (
	KindBuildpacks Kind = "buildpacks"
	KindDroplets   Kind = "droplets"
	KindPackages   Kind = "packages"
)

// Kinds lists every resource kind in route order.
var Kinds = []Kind{KindBuildpacks, KindDroplets, KindPackages}

// ParseKind maps a collection name to its Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", bitserrors.NewInvalidArgumentError("unknown resource kind " + s)
}

// FormField is the multipart field carrying uploads of this kind.
func (k Kind) FormField() string {
	switch k {
	case KindBuildpacks:
		return "buildpack"
	case KindDroplets:
		return "droplet"
	case KindPackages:
		return "package"
	default:
		return string(k)
	}
}

// Normalized reports whether uploads of this kind are rewritten before
// being stored.
func (k Kind) Normalized() bool {
	return k == KindPackages
}
