package request

// hexValue maps a hex digit to its value. Anything else is returned as
// its raw byte value.
func hexValue(ch byte) int {
	switch {
	case ch >= '0' && ch <= '9':
		return int(ch - '0')
	case ch >= 'A' && ch <= 'F':
		return int(ch-'A') + 10
	case ch >= 'a' && ch <= 'f':
		return int(ch-'a') + 10
	default:
		return int(ch)
	}
}

// parseFromURLEncoded decodes the body in place and fills the post map.
//
// This is not RFC percent-decoding: "%XY" keeps its '%' and has X and Y
// overwritten with the two decimal digits of 16*X+Y, so "%41" becomes
// "%65". Values of 100 and up do not fit and wrap into non-digit bytes.
func (r *Request) parseFromURLEncoded() {
	if len(r.body) == 0 {
		return
	}

	b := []byte(r.body)
	n := len(b)
	var key, value string
	i, j := 0, 0

	for ; i < n; i++ {
		switch b[i] {
		case '=':
			key = string(b[j:i])
			j = i + 1
		case '+':
			b[i] = ' '
		case '%':
			if i+2 >= n {
				continue
			}
			num := hexValue(b[i+1])*16 + hexValue(b[i+2])
			b[i+2] = byte(num%10 + '0')
			b[i+1] = byte(num/10 + '0')
			i += 2
		case '&':
			value = string(b[j:i])
			j = i + 1
			r.post[key] = value
			r.log.Debugf("%s = %s", key, value)
		}
	}

	r.body = string(b)
	if _, ok := r.post[key]; !ok && j < i {
		r.post[key] = string(b[j:i])
	}
}
