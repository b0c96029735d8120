package tls13

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

// Values from RFC 8448, section 3 (simple 1-RTT handshake,
// TLS_AES_128_GCM_SHA256).
const (
	rfcEarlySecret     = "33ad0a1c607ec03b09e6cd9893680ce210adf300aa1f2660e1b22e10f170f92a"
	rfcDerivedSalt     = "6f2615a108c702c5678f54fc9dbab69716c076189c48250cebeac3576c3611ba"
	rfcECDHE           = "8bd4054fb55b9d63fdfbacf9f04b9f0d35e6d63f537563efd46272900f89492d"
	rfcHandshakeSecret = "1dc826e93606aa6fdc0aadc12f741b01046aa6b99f691ed221a9f0ca043fbeac"
	rfcMasterSecret    = "18df06843d13a08bf2a449844c5f8a478001bc4d4c627984d5a41da8d0402919"

	rfcTranscriptSH = "860c06edc07858ee8e78f0e7428c58edd6b43f2ca3e6e95f02ed063cf0e1cad8"
	rfcTranscriptCV = "edb7725fa7a3473b031ec8ef65a2485493900138a2b91291407d7951a06110ed"
	rfcTranscriptSF = "9608102a0f1ccc6db6250b7b7e417b1a000eaada3daae4777a7686c9ff83df13"
	rfcTranscriptCF = "209145a96ee8e2a122ff810047cc952684658d6049e86429426db87c54ad143d"

	rfcClientHS = "b3eddb126e067f35a780b3abf45e2d8f3b1a950738f52e9600746a0e27a55a21"
	rfcServerHS = "b67b7d690cc16c4e75e54213cb2d37b4e9c912bcded9105d42befd59d391ad38"

	rfcServerHSKey = "3fce516009c21727d0f2e4e86ee403bc"
	rfcServerHSIV  = "5d313eb2671276ee13000b30"
	rfcClientHSKey = "dbfaa693d1762c5b666af5d950258d01"
	rfcClientHSIV  = "5bd3c71b836e0b76bb73265f"

	rfcClientAP       = "9e40646ce79a7f9dc05af8889bce6552875afa0b06df0087f792ebb7c17504a5"
	rfcServerAP       = "a11af9f05531f856ad47116b45a950328204b4f44bfb6b3a4b4f1f3fcb631643"
	rfcExporterMaster = "fe22f881176eda18eb8f44529e6792c50c9a3f89452f68d8ae311b4309d3cf50"

	rfcServerAPKey = "9f02283b6c9c07efc26bb9f2ac92e356"
	rfcServerAPIV  = "cf782b88dd83549aadf1e984"
	rfcClientAPKey = "17422dda596ed5d9acd890e3c63f5051"
	rfcClientAPIV  = "5b78923dee08579033e523d9"

	rfcServerFinished = "9b9b141d906337fbd2cbdce71df4deda4ab42c309572cb7fffee5454b78f0718"
	rfcClientFinished = "a8ec436d677634ae525ac1fcebe11a039ec17694fac6e98527b642f2edd5ce61"

	rfcResumptionMaster = "7df235f2031d2a051287d02b0241b0bfdaf86cc856231f2d5aba46c434ec196c"
	rfcResumptionPSK    = "4ecd0eb6ec3b4d87f5d6028f922ca4c5851a277fd41311c9e62d2c9492e1c4f3"
)

func unhex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func suite(t *testing.T, id CipherSuiteID) *CipherSuite {
	t.Helper()
	s, err := CipherSuiteByID(id)
	require.NoError(t, err)
	return s
}
