package inventory

import (
	"context"
	"net"
	"net/netip"
	"strings"

	"ralph-api/internal/models"
	"ralph-api/internal/store"
)

const (
	msgEthernetExposed = "Could not delete Ethernet when it is exposed in DHCP"
	msgObjectExposed   = "Could not delete object when one of its ethernets is exposed in DHCP"
	msgMACExposed      = "Cannot change MAC when exposing in DHCP"
	msgIPExposed       = "Could not delete IPAddress when it is exposed in DHCP"
	msgExposeNoMAC     = "Cannot expose in DHCP without MAC address"
	msgAddressExposed  = "Cannot change address when exposing in DHCP"
)

// NormalizeMAC parses a 48-bit MAC address into lower-case colon form
func NormalizeMAC(s string) (string, bool) {
	hw, err := net.ParseMAC(strings.TrimSpace(s))
	if err != nil || len(hw) != 6 {
		return "", false
	}
	return hw.String(), true
}

// NormalizeIP parses an IPv4 or IPv6 address into its canonical form
func NormalizeIP(s string) (string, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil || addr.Zone() != "" {
		return "", false
	}
	return addr.Unmap().String(), true
}

func validSpeed(s string) bool {
	for _, v := range models.EthernetSpeeds {
		if v == s {
			return true
		}
	}
	return false
}

func (inv *Inventory) ListEthernets(ctx context.Context, f store.EthernetFilter, opts store.ListOptions) ([]models.Ethernet, int, error) {
	return inv.store.ListEthernets(ctx, f, opts)
}

func (inv *Inventory) GetEthernet(ctx context.Context, id int64) (*models.Ethernet, error) {
	return inv.store.GetEthernet(ctx, id)
}

func (inv *Inventory) CreateEthernet(ctx context.Context, req models.EthernetRequest) (*models.Ethernet, error) {
	e := &models.Ethernet{Speed: models.DefaultEthernetSpeed}
	err := inv.store.WithTx(ctx, func(ctx context.Context) error {
		verr := &store.ValidationError{}
		if req.BaseObject == nil {
			verr.Add("base_object", msgRequired)
		}
		if err := inv.applyEthernet(ctx, e, req, verr); err != nil {
			return err
		}
		return inv.store.CreateEthernet(ctx, e)
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// UpdateEthernet applies a partial update. The MAC of an ethernet exposed in
// DHCP cannot change.
func (inv *Inventory) UpdateEthernet(ctx context.Context, id int64, req models.EthernetRequest) (*models.Ethernet, error) {
	var e *models.Ethernet
	err := inv.store.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if e, err = inv.store.GetEthernet(ctx, id); err != nil {
			return err
		}
		oldMAC := e.MAC
		if err := inv.applyEthernet(ctx, e, req, &store.ValidationError{}); err != nil {
			return err
		}
		if e.MAC != oldMAC {
			exposed, err := inv.ethernetExposed(ctx, id)
			if err != nil {
				return err
			}
			if exposed {
				return store.NewValidationError("mac", msgMACExposed)
			}
		}
		return inv.store.UpdateEthernet(ctx, e)
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (inv *Inventory) applyEthernet(ctx context.Context, e *models.Ethernet, req models.EthernetRequest, verr *store.ValidationError) error {
	if req.BaseObject != nil {
		id, ok, err := inv.resolveField(ctx, "baseobject", "base_object", models.Ref{ID: *req.BaseObject}, verr)
		if err != nil {
			return err
		}
		if ok {
			e.BaseObjectID = id
		}
	}
	if req.Label != nil {
		validateVar("label", *req.Label, "max=255", verr)
	}
	mac := e.MAC
	if req.MAC != nil {
		mac = ""
		if strings.TrimSpace(*req.MAC) != "" {
			var ok bool
			if mac, ok = NormalizeMAC(*req.MAC); !ok {
				verr.Add("mac", msgInvalidMAC)
			}
		}
	}
	if req.Speed != nil && !validSpeed(*req.Speed) {
		verr.Add("speed", msgInvalidChoice)
	}
	if err := verr.Err(); err != nil {
		return err
	}
	e.MAC = mac
	if req.Label != nil {
		e.Label = strings.TrimSpace(*req.Label)
	}
	if req.Speed != nil {
		e.Speed = *req.Speed
	}
	return nil
}

// ethernetExposed reports whether an address bound to the ethernet is
// exposed in DHCP
func (inv *Inventory) ethernetExposed(ctx context.Context, id int64) (bool, error) {
	exposed := true
	_, total, err := inv.store.ListIPAddresses(ctx, store.IPAddressFilter{
		EthernetIDs: []int64{id},
		DHCPExpose:  &exposed,
	}, store.ListOptions{Limit: 1})
	if err != nil {
		return false, err
	}
	return total > 0, nil
}

// DeleteEthernet removes an ethernet unless it is exposed in DHCP; its
// addresses are detached
func (inv *Inventory) DeleteEthernet(ctx context.Context, id int64) error {
	return inv.store.WithTx(ctx, func(ctx context.Context) error {
		if _, err := inv.store.GetEthernet(ctx, id); err != nil {
			return err
		}
		exposed, err := inv.ethernetExposed(ctx, id)
		if err != nil {
			return err
		}
		if exposed {
			return store.Protected(msgEthernetExposed)
		}
		return inv.store.DeleteEthernet(ctx, id)
	})
}

func (inv *Inventory) ListIPAddresses(ctx context.Context, f store.IPAddressFilter, opts store.ListOptions) ([]models.IPAddress, int, error) {
	return inv.store.ListIPAddresses(ctx, f, opts)
}

func (inv *Inventory) GetIPAddress(ctx context.Context, id int64) (*models.IPAddress, error) {
	return inv.store.GetIPAddress(ctx, id)
}

func (inv *Inventory) CreateIPAddress(ctx context.Context, req models.IPAddressRequest) (*models.IPAddress, error) {
	ip := &models.IPAddress{}
	err := inv.store.WithTx(ctx, func(ctx context.Context) error {
		verr := &store.ValidationError{}
		requireString("address", req.Address, verr)
		if err := inv.applyIPAddress(ctx, ip, req, verr); err != nil {
			return err
		}
		return inv.store.CreateIPAddress(ctx, ip)
	})
	if err != nil {
		return nil, err
	}
	return ip, nil
}

// UpdateIPAddress applies a partial update. The address of an exposed
// record cannot change.
func (inv *Inventory) UpdateIPAddress(ctx context.Context, id int64, req models.IPAddressRequest) (*models.IPAddress, error) {
	var ip *models.IPAddress
	err := inv.store.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if ip, err = inv.store.GetIPAddress(ctx, id); err != nil {
			return err
		}
		wasExposed, oldAddress := ip.DHCPExpose, ip.Address
		verr := &store.ValidationError{}
		if req.Address != nil {
			requireString("address", req.Address, verr)
		}
		if err := inv.applyIPAddress(ctx, ip, req, verr); err != nil {
			return err
		}
		if wasExposed && ip.DHCPExpose && ip.Address != oldAddress {
			return store.NewValidationError("address", msgAddressExposed)
		}
		return inv.store.UpdateIPAddress(ctx, ip)
	})
	if err != nil {
		return nil, err
	}
	return ip, nil
}

func (inv *Inventory) applyIPAddress(ctx context.Context, ip *models.IPAddress, req models.IPAddressRequest, verr *store.ValidationError) error {
	address := ip.Address
	if req.Address != nil && strings.TrimSpace(*req.Address) != "" {
		var ok bool
		if address, ok = NormalizeIP(*req.Address); !ok {
			verr.Add("address", msgInvalidIP)
		}
	}
	if req.Hostname != nil {
		validateVar("hostname", *req.Hostname, "max=255", verr)
	}
	ethernet := ip.EthernetID
	if err := inv.applyOptionalRef(ctx, "ethernet", "ethernet", req.Ethernet, &ethernet, verr); err != nil {
		return err
	}
	expose := ip.DHCPExpose
	if req.DHCPExpose != nil {
		expose = *req.DHCPExpose
	}
	if expose && verr.Empty() {
		hasMAC := false
		if ethernet != nil {
			e, err := inv.store.GetEthernet(ctx, *ethernet)
			if err != nil {
				return err
			}
			hasMAC = e.MAC != ""
		}
		if !hasMAC {
			verr.Add("dhcp_expose", msgExposeNoMAC)
		}
	}
	if err := verr.Err(); err != nil {
		return err
	}
	ip.Address = address
	ip.EthernetID = ethernet
	ip.DHCPExpose = expose
	if req.Hostname != nil {
		ip.Hostname = strings.TrimSpace(*req.Hostname)
	}
	if req.IsManagement != nil {
		ip.IsManagement = *req.IsManagement
	}
	return nil
}

// DeleteIPAddress removes an address unless it is exposed in DHCP
func (inv *Inventory) DeleteIPAddress(ctx context.Context, id int64) error {
	return inv.store.WithTx(ctx, func(ctx context.Context) error {
		ip, err := inv.store.GetIPAddress(ctx, id)
		if err != nil {
			return err
		}
		if ip.DHCPExpose {
			return store.Protected(msgIPExposed)
		}
		return inv.store.DeleteIPAddress(ctx, id)
	})
}
