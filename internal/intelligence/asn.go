package intelligence

// datacenterASNs are hosting and cloud networks. Traffic from them is rarely a phone on a cellular or home link.
var datacenterASNs = map[uint]string{
	16509:  "Amazon AWS",
	14618:  "Amazon AWS",
	15169:  "Google Cloud",
	396982: "Google Cloud",
	8075:   "Microsoft Azure",
	14061:  "DigitalOcean",
	24940:  "Hetzner",
	16276:  "OVH",
	12876:  "Scaleway",
	49981:  "WorldStream",
	20473:  "Vultr (Choopa)",
	63949:  "Linode (Akamai)",
	46606:  "Unified Layer",
	36352:  "ColoCrossing",
	13335:  "Cloudflare",
	20940:  "Akamai",
}

// vpnASNs are networks dominated by commercial VPN and proxy exits.
var vpnASNs = map[uint]string{
	9009:   "M247",
	60068:  "Datacamp (CDN77)",
	212238: "Datacamp",
	136787: "TEFINCOM (NordVPN)",
	209854: "Cyberzone (Surfshark)",
	147049: "PacketHub",
}

// ClassifyASN reports whether an autonomous system is a known VPN operator or data center.
// VPN operators are reported as data centers as well.
func ClassifyASN(asn uint) (isVPN, isDataCenter bool) {
	if asn == 0 {
		return false, false
	}
	if _, ok := vpnASNs[asn]; ok {
		return true, true
	}
	_, isDataCenter = datacenterASNs[asn]
	return false, isDataCenter
}
