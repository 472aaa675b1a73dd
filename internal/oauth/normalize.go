package oauth

import (
	"fmt"
	"strconv"

	"github.com/chefmate/auth-service/internal/domain"
)

// NormalizedProfile is the uniform identity record every provider payload is
// reduced to before reconciliation. It is transient and never persisted.
type NormalizedProfile struct {
	Provider    string
	ProviderID  string
	DisplayName string
	PictureURL  string
	Email       string // synthesized when the provider withholds it
}

// Normalize maps a raw userinfo payload into a NormalizedProfile.
//
// Google is flat: id, email, name, picture. Kakao has returned profile data
// in at least three shapes depending on account state, probed in fixed
// priority order:
//
//  1. kakao_account.profile.nickname / .profile_image_url
//  2. profile.nickname / .profile_image_url
//  3. properties.nickname / .profile_image
//
// A missing nickname or email is synthesized from the provider id; a missing
// picture stays empty.
func Normalize(provider string, raw map[string]any) (*NormalizedProfile, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: empty profile payload", ErrMalformedResponse)
	}
	id := asString(raw["id"])
	if id == "" {
		return nil, fmt.Errorf("%w: profile payload has no id", ErrMalformedResponse)
	}

	p := &NormalizedProfile{Provider: provider, ProviderID: id}

	switch provider {
	case domain.ProviderKakao:
		p.DisplayName, p.PictureURL = kakaoNameAndPicture(raw)
		if acct, ok := raw["kakao_account"].(map[string]any); ok {
			p.Email = asString(acct["email"])
		}
		if p.Email == "" {
			p.Email = asString(raw["email"])
		}
	default: // google and any future flat-shaped provider
		p.DisplayName = asString(raw["name"])
		p.PictureURL = asString(raw["picture"])
		p.Email = asString(raw["email"])
	}

	if p.DisplayName == "" {
		p.DisplayName = fmt.Sprintf("%s_user_%s", provider, id)
	}
	if p.Email == "" {
		p.Email = fmt.Sprintf("%s_%s@%s.com", provider, id, provider)
	}
	return p, nil
}

func kakaoNameAndPicture(raw map[string]any) (name, picture string) {
	type source struct {
		node       map[string]any
		pictureKey string
	}
	var sources []source

	if acct, ok := raw["kakao_account"].(map[string]any); ok {
		if prof, ok := acct["profile"].(map[string]any); ok {
			sources = append(sources, source{prof, "profile_image_url"})
		}
	}
	if prof, ok := raw["profile"].(map[string]any); ok {
		sources = append(sources, source{prof, "profile_image_url"})
	}
	if props, ok := raw["properties"].(map[string]any); ok {
		sources = append(sources, source{props, "profile_image"})
	}

	for _, s := range sources {
		if name == "" {
			name = asString(s.node["nickname"])
		}
		if picture == "" {
			picture = asString(s.node[s.pictureKey])
		}
		if name != "" && picture != "" {
			break
		}
	}
	return name, picture
}

// asString renders the JSON scalar shapes provider ids arrive in: Google
// sends strings, Kakao sends numbers.
func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return ""
	}
}
