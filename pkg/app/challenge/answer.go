package challenge

import (
	"errors"
	"strconv"

	"github.com/valyala/fastjson"
)

var ErrMalformedAnswer = errors.New("challenge answer must carry a token and an answer")

var answerParsers fastjson.ParserPool

// ParseAnswer reads {"token": "...", "answer": 7} from a request body. The answer
// may be sent as a number or as a string.
func ParseAnswer(body []byte) (string, string, error) {
	p := answerParsers.Get()
	defer answerParsers.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		return "", "", ErrMalformedAnswer
	}
	token := string(v.GetStringBytes("token"))
	if token == "" {
		return "", "", ErrMalformedAnswer
	}

	a := v.Get("answer")
	if a == nil {
		return "", "", ErrMalformedAnswer
	}
	switch a.Type() {
	case fastjson.TypeString:
		return token, string(a.GetStringBytes()), nil
	case fastjson.TypeNumber:
		n, err := a.Int()
		if err != nil {
			return "", "", ErrMalformedAnswer
		}
		return token, strconv.Itoa(n), nil
	default:
		return "", "", ErrMalformedAnswer
	}
}
